package domain

import "context"

// EmbeddingResult is the output of a single embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// ChatMessage is one message of an LLM conversation.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatRequest is a single completion request under a token budget.
type ChatRequest struct {
	System    string
	Messages  []ChatMessage
	MaxTokens int
}

// ChatResponse is the completion text plus token usage.
type ChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel is the LLM collaborator used by the answer synthesizer.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// HealthChecker is implemented by providers that can verify availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
