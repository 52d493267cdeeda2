// Package synthesis turns fused evidence into a grounded natural-language
// answer and verifies the answer against the evidence before returning it.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Params bound a synthesis call.
type Params struct {
	Timeout time.Duration
}

// Result is a verified synthesis outcome. Insufficient means the model
// declared the evidence cannot answer the question; that is a refusal
// signal, not an error.
type Result struct {
	Answer       string
	Claims       []domain.ClaimSource
	Insufficient bool
}

// Service calls the chat model and verifies its output.
type Service struct {
	model  domain.ChatModel
	params Params
	logger *zap.Logger
}

// New creates the synthesis service.
func New(model domain.ChatModel, params Params, logger *zap.Logger) *Service {
	return &Service{model: model, params: params, logger: logger}
}

// Synthesize generates an answer grounded in the evidence. Provider errors
// are retried once; a canceled parent context is never retried. An answer
// containing numbers not present in the evidence is rejected.
func (s *Service) Synthesize(
	ctx context.Context,
	question string,
	evidence domain.EvidenceSet,
	history []domain.ConversationTurn,
) (Result, error) {
	if len(evidence) == 0 {
		return Result{Insufficient: true}, nil
	}

	req := domain.ChatRequest{
		System: systemPrompt,
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildUserMessage(question, evidence, history)},
		},
	}

	resp, err := s.complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" || strings.Contains(answer, insufficientMarker) {
		return Result{Insufficient: true}, nil
	}

	if !numbersSupported(answer, evidence) {
		s.logger.Warn("Rejected answer with untraceable figures",
			zap.Int("evidence_count", len(evidence)))
		return Result{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, domain.ErrUnsupportedClaim)
	}

	return Result{
		Answer: answer,
		Claims: attribute(answer, evidence),
	}, nil
}

// maxRecommendations caps the proactive suggestions attached to one answer.
const maxRecommendations = 3

// Recommend produces optimization suggestions grounded in the evidence.
// Uses the same retry discipline as Synthesize.
func (s *Service) Recommend(ctx context.Context, evidence domain.EvidenceSet) ([]string, error) {
	if len(evidence) == 0 {
		return nil, nil
	}

	req := domain.ChatRequest{
		System: recommendSystemPrompt,
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildRecommendationMessage(evidence)},
		},
	}

	resp, err := s.complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}

	return parseRecommendations(resp.Content), nil
}

// parseRecommendations keeps bullet or numbered lines, the shapes the model
// was asked for, and drops any surrounding prose.
func parseRecommendations(text string) []string {
	var recs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (line[0] != '-' && (line[0] < '0' || line[0] > '9')) {
			continue
		}
		line = strings.TrimLeft(line, "-0123456789.) ")
		if line == "" {
			continue
		}
		recs = append(recs, line)
		if len(recs) == maxRecommendations {
			break
		}
	}
	return recs
}

func (s *Service) complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	resp, err := s.model.Complete(callCtx, req)
	cancel()
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return domain.ChatResponse{}, err
	}

	s.logger.Warn("Retrying synthesis after provider error", zap.Error(err))

	callCtx, cancel = context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()
	return s.model.Complete(callCtx, req)
}
