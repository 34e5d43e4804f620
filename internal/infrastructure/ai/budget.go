package ai

import (
	"strings"
	"unicode/utf8"

	"github.com/doeshing/li/internal/domain"
)

const (
	// CompletionSafetyMargin is held back from the context window so replies
	// stay under the model limit.
	CompletionSafetyMargin = 256
	// MinCompletionTokens avoids truncated replies when the prompt is large.
	MinCompletionTokens = 32

	perMessageOverhead = 4
)

// EstimateTokens is a conservative token estimate for text: the larger of
// one token per three characters and one token per word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	fromChars := (utf8.RuneCountInString(text) + 2) / 3
	fromWords := len(strings.Fields(text))
	if fromWords > fromChars {
		return fromWords
	}
	return fromChars
}

// EstimatePromptTokens sums the estimate for each message plus metadata overhead.
func EstimatePromptTokens(messages []domain.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content) + perMessageOverhead
	}
	return total
}

// EstimateCompletionBudget derives max_tokens for a request given the
// model's context limit. The result is never below 1 and never above what
// the context window has left.
func EstimateCompletionBudget(contextLimit int, messages []domain.ChatMessage) int {
	remaining := contextLimit - EstimatePromptTokens(messages)
	if remaining <= 0 {
		return 1
	}

	desired := remaining - CompletionSafetyMargin
	if desired < MinCompletionTokens {
		desired = MinCompletionTokens
	}
	if desired > remaining {
		desired = remaining
	}
	if desired < 1 {
		return 1
	}
	return desired
}
