package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/metrics"
)

// ChatModel is a chat completion provider using the OpenAI-compatible API.
// Any provider exposing a compatible endpoint works via BaseURL.
type ChatModel struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// ChatConfig holds the chat provider settings.
type ChatConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// NewChatModel creates an OpenAI-compatible chat completion provider.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatModel{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// Complete implements domain.ChatModel.
func (m *ChatModel) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return domain.ChatResponse{}, parseAPIError(err, domain.ErrLLMProvider)
	}

	if len(resp.Choices) == 0 {
		return domain.ChatResponse{}, fmt.Errorf("empty completion response: %w", domain.ErrLLMProvider)
	}

	metrics.LLMTokensTotal.WithLabelValues(m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(m.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return domain.ChatResponse{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
