package synthesis

import (
	"fmt"
	"strings"

	"github.com/acharyye/graphRAG/internal/domain"
)

// insufficientMarker is the exact token the model must emit when the
// evidence cannot answer the question. Checked verbatim, never paraphrased.
const insufficientMarker = "INSUFFICIENT_DATA"

const systemPrompt = `You are a marketing analytics assistant. Answer questions using ONLY the numbered evidence provided. Rules:
- Every figure you state must come verbatim from the evidence. Never compute, extrapolate, or estimate numbers.
- Cite evidence by number, like [1] or [2], after each claim it supports.
- If the evidence does not contain what is needed to answer, respond with exactly ` + insufficientMarker + ` and nothing else.
- Be concise and factual. Do not speculate about data you were not given.`

const recommendSystemPrompt = `You are a marketing analytics assistant. Suggest concrete optimizations based ONLY on the numbered evidence provided. Rules:
- One suggestion per line, each starting with "- ".
- At most three suggestions.
- Only suggest actions the evidence supports. If nothing stands out, respond with an empty message.`

// benchmarkLine anchors suggestions against baselines so the model compares
// instead of inventing its own reference points.
const benchmarkLine = "Industry benchmarks: average CTR 2%, average CPC $1.50, target ROAS 3x."

func buildRecommendationMessage(evidence domain.EvidenceSet) string {
	var b strings.Builder
	b.WriteString(benchmarkLine)
	b.WriteString("\n\nEvidence:\n")
	for i, item := range evidence {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, item.Snippet)
	}
	b.WriteString("\nSuggest up to three optimizations.")
	return b.String()
}

// buildUserMessage renders the numbered evidence block, recent conversation
// context, and the question into one prompt.
func buildUserMessage(question string, evidence domain.EvidenceSet, history []domain.ConversationTurn) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
		}
		b.WriteString("\n")
	}

	b.WriteString("Evidence:\n")
	for i, item := range evidence {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, item.Snippet)
	}

	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}
