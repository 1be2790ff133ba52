// Package llm defines the completion-service boundary and the Anthropic
// client behind it. Completion failures are always recoverable: callers
// fall back to deterministic extraction or rendering.
package llm

import (
	"context"
	"errors"
)

// Completer issues one completion request and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Sentinel failure classes for completion calls. Wrapped errors stay
// errors.Is-able against these.
var (
	// ErrTimeout means the call exceeded its deadline.
	ErrTimeout = errors.New("completion timed out")
	// ErrAuth means the API rejected the credentials. Never retried.
	ErrAuth = errors.New("completion authentication failed")
	// ErrRateLimited means the API throttled the call.
	ErrRateLimited = errors.New("completion rate limited")
)

// EstimateTokens approximates token usage from whitespace-separated words.
// Good enough for the running per-request counter; exact counts would need
// the provider's tokenizer.
func EstimateTokens(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			inWord = false
		case !inWord:
			inWord = true
			n++
		}
	}
	return n
}
