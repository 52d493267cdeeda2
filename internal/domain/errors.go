package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTenant signals a missing, unknown, or unauthorized tenant.
	ErrInvalidTenant = errors.New("invalid tenant")
	// ErrTenantMismatch signals an access attempt on data owned by another tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrInvalidDateRange signals a malformed or inverted date range.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrNotFound signals a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrRetrievalFailed signals that both retrievers failed to produce evidence.
	ErrRetrievalFailed = errors.New("all retrievers failed")
	// ErrSynthesis signals an answer synthesis failure.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrUnsupportedClaim signals that the model produced a claim not traceable to evidence.
	ErrUnsupportedClaim = errors.New("unsupported claim in answer")
	// ErrDrillDownForbidden signals a drill-down attempt without analyst access.
	ErrDrillDownForbidden = errors.New("drill-down requires analyst role")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrLLMProvider signals an LLM provider failure.
	ErrLLMProvider = errors.New("llm provider error")
)

// Step identifies a stage of the query state machine.
type Step string

// Query state machine steps.
const (
	StepReceived     Step = "received"
	StepScoped       Step = "scoped"
	StepRetrieving   Step = "retrieving"
	StepFusing       Step = "fusing"
	StepSynthesizing Step = "synthesizing"
	StepScored       Step = "scored"
	StepDone         Step = "done"
)

// StepError reports an infrastructure failure with the step it originated from.
// A StepError is never converted into a REFUSED confidence: REFUSED is a
// successful query with insufficient evidence, StepError is a failed query.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("query failed at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NewStepError wraps err with the originating step.
func NewStepError(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}
