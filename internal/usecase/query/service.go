// Package query is the orchestrator: it drives one question through scope
// validation, parallel retrieval, fusion, synthesis, and scoring, and owns
// the distinction between a refused answer and a failed query.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/metrics"
	"github.com/acharyye/graphRAG/internal/repository/audit"
	"github.com/acharyye/graphRAG/internal/usecase/confidence"
)

// retryBackoff is the pause before a retriever's single retry.
const retryBackoff = 100 * time.Millisecond

// maxRememberedEntities caps how many evidence entities one turn contributes
// to follow-up seeding.
const maxRememberedEntities = 5

// minRecommendationEvidence is the evidence floor below which proactive
// suggestions would be guesswork.
const minRecommendationEvidence = 3

// Params tune orchestration.
type Params struct {
	RetrieverTimeout time.Duration // per-retriever budget inside one query
}

// Request is one incoming question.
type Request struct {
	TenantID  string
	Question  string
	SessionID string           // empty for stateless queries
	Dates     domain.DateRange // zero means "use the intent default"
	Role      string
}

// Service orchestrates query execution.
type Service struct {
	guard     ScopeGuard
	parser    IntentParser
	graphRet  GraphRetriever
	vectorRet VectorRetriever
	fuser     EvidenceFuser
	synth     Synthesizer
	scorer    Scorer
	memory    Memory
	auditor   Auditor
	drill     DrillReader
	params    Params
	logger    *zap.Logger
}

// New wires the orchestrator.
func New(
	guard ScopeGuard,
	parser IntentParser,
	graphRet GraphRetriever,
	vectorRet VectorRetriever,
	fuser EvidenceFuser,
	synth Synthesizer,
	scorer Scorer,
	memory Memory,
	auditor Auditor,
	drill DrillReader,
	params Params,
	logger *zap.Logger,
) *Service {
	return &Service{
		guard:     guard,
		parser:    parser,
		graphRet:  graphRet,
		vectorRet: vectorRet,
		fuser:     fuser,
		synth:     synth,
		scorer:    scorer,
		memory:    memory,
		auditor:   auditor,
		drill:     drill,
		params:    params,
		logger:    logger,
	}
}

// Execute runs one question end to end. REFUSED comes back as a successful
// result with a refusal reason; infrastructure failures come back as a
// StepError naming the stage that broke.
func (s *Service) Execute(ctx context.Context, req Request) (*domain.QueryResult, error) {
	start := time.Now()

	result, err := s.execute(ctx, req, start)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("FAILED").Inc()
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues(string(result.Confidence)).Inc()
	return result, nil
}

func (s *Service) execute(ctx context.Context, req Request, start time.Time) (*domain.QueryResult, error) {
	tc, err := s.guard.Scope(req.TenantID, req.Dates)
	if err != nil {
		return nil, domain.NewStepError(domain.StepScoped, err)
	}

	history, seeds, err := s.memory.Recent(ctx, req.TenantID, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrTenantMismatch) {
			return nil, domain.NewStepError(domain.StepScoped, err)
		}
		// History is an enrichment; a store hiccup degrades to a fresh turn.
		s.logger.Warn("Proceeding without conversation history", zap.Error(err))
		history, seeds = nil, nil
	}

	intent := s.parser.Parse(req.Question, req.Dates, seeds)

	graphItems, vectorItems, err := s.retrieve(ctx, tc, req.Question, intent)
	if err != nil {
		return nil, domain.NewStepError(domain.StepRetrieving, err)
	}

	fused := s.fuser.Fuse(graphItems, vectorItems)

	var (
		answer       string
		claims       []domain.ClaimSource
		insufficient bool
	)
	if len(fused) > 0 {
		res, err := s.synth.Synthesize(ctx, req.Question, fused, history)
		if err != nil {
			return nil, domain.NewStepError(domain.StepSynthesizing, err)
		}
		answer = res.Answer
		claims = res.Claims
		insufficient = res.Insufficient
	}

	conf, reason := s.scorer.Score(confidence.Input{
		Evidence:     fused,
		Requested:    intent.Dates,
		Insufficient: insufficient,
	})
	if conf == domain.ConfidenceRefused {
		answer, claims = "", nil
	}

	var recommendations []string
	if conf != domain.ConfidenceRefused && wantsRecommendations(intent.QueryType) && len(fused) >= minRecommendationEvidence {
		recommendations, err = s.synth.Recommend(ctx, fused)
		if err != nil {
			// Suggestions are an enrichment; the answer stands without them.
			s.logger.Warn("Skipping recommendations", zap.Error(err))
			recommendations = nil
		}
	}

	result := &domain.QueryResult{
		QueryID:         uuid.NewString(),
		Answer:          answer,
		Confidence:      conf,
		Evidence:        fused,
		Claims:          claims,
		Recommendations: recommendations,
		RefusalReason:   reason,
		Timestamp:       time.Now().UTC(),
	}

	// A canceled request must leave no trace in the session: the caller
	// never saw the answer.
	if ctx.Err() != nil {
		return nil, domain.NewStepError(domain.StepDone, ctx.Err())
	}

	s.remember(ctx, req, result)
	s.audit(ctx, req, result, time.Since(start))

	return result, nil
}

// wantsRecommendations reports whether answers for this intent carry
// proactive optimization suggestions.
func wantsRecommendations(qt domain.QueryType) bool {
	switch qt {
	case domain.QueryPerformance, domain.QueryFinancial, domain.QueryRanking:
		return true
	}
	return false
}

// retrieve fans out to both retrievers with individual timeouts and one
// retry each. A failed or slow retriever contributes an empty list; only
// both failing fails the query.
func (s *Service) retrieve(
	ctx context.Context,
	tc domain.TenantContext,
	question string,
	intent domain.ParsedIntent,
) (graphItems, vectorItems []domain.EvidenceItem, err error) {
	var graphErr, vectorErr error
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		graphItems, graphErr = s.runRetriever(ctx, "graph", func(rctx context.Context) ([]domain.EvidenceItem, error) {
			return s.graphRet.Retrieve(rctx, tc, intent)
		})
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		vectorItems, vectorErr = s.runRetriever(ctx, "vector", func(rctx context.Context) ([]domain.EvidenceItem, error) {
			return s.vectorRet.Retrieve(rctx, tc, question, intent)
		})
	}()
	<-done
	<-done

	if graphErr != nil && vectorErr != nil {
		s.logger.Error("Both retrievers failed",
			zap.String("tenant_id", tc.TenantID()),
			zap.NamedError("graph", graphErr),
			zap.NamedError("vector", vectorErr))
		return nil, nil, domain.ErrRetrievalFailed
	}
	return graphItems, vectorItems, nil
}

func (s *Service) runRetriever(
	ctx context.Context,
	source string,
	fn func(context.Context) ([]domain.EvidenceItem, error),
) ([]domain.EvidenceItem, error) {
	start := time.Now()
	items, err := s.runOnce(ctx, fn)
	if err != nil && ctx.Err() == nil && !isScopeViolation(err) {
		time.Sleep(retryBackoff)
		items, err = s.runOnce(ctx, fn)
	}
	metrics.RetrieverDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RetrieverFailuresTotal.WithLabelValues(source).Inc()
		s.logger.Warn("Retriever failed, proceeding without its evidence",
			zap.String("source", source),
			zap.Error(err))
		return nil, err
	}
	return items, nil
}

// isScopeViolation reports whether the error is a tenant-scope or validation
// failure. Those are deterministic and never retried.
func isScopeViolation(err error) bool {
	return errors.Is(err, domain.ErrTenantMismatch) ||
		errors.Is(err, domain.ErrInvalidTenant) ||
		errors.Is(err, domain.ErrInvalidDateRange)
}

func (s *Service) runOnce(ctx context.Context, fn func(context.Context) ([]domain.EvidenceItem, error)) ([]domain.EvidenceItem, error) {
	rctx, cancel := context.WithTimeout(ctx, s.params.RetrieverTimeout)
	defer cancel()
	return fn(rctx)
}

// remember appends the completed turn. Refusals are remembered too: a
// follow-up to a refused question is still a follow-up.
func (s *Service) remember(ctx context.Context, req Request, result *domain.QueryResult) {
	if req.SessionID == "" {
		return
	}

	answer := result.Answer
	if result.Confidence == domain.ConfidenceRefused {
		answer = "(refused: " + result.RefusalReason + ")"
	}

	entities := result.Evidence.Refs()
	if len(entities) > maxRememberedEntities {
		entities = entities[:maxRememberedEntities]
	}

	if err := s.memory.Append(ctx, req.TenantID, req.SessionID, req.Question, answer, entities); err != nil {
		s.logger.Warn("Failed to append conversation turn",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	}
}

func (s *Service) audit(ctx context.Context, req Request, result *domain.QueryResult, latency time.Duration) {
	_ = s.auditor.Write(ctx, audit.Record{
		ID:         result.QueryID,
		TenantID:   req.TenantID,
		SessionID:  req.SessionID,
		Question:   req.Question,
		Answer:     result.Answer,
		Confidence: result.Confidence,
		LatencyMS:  latency.Milliseconds(),
	})
}

// ClearSession removes a tenant's session history.
func (s *Service) ClearSession(ctx context.Context, tenantID, sessionID string) error {
	return s.memory.Clear(ctx, tenantID, sessionID)
}
