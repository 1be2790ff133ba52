// Package testutil provides shared mock implementations for use in tests
// across the codebase.
package testutil

import (
	"context"
	"sync"

	"courtql/internal/llm"
)

// MockCompleter implements llm.Completer for testing. Prompts are recorded
// for assertions; calls are counted under a lock so concurrent tests can
// assert on call volume.
type MockCompleter struct {
	CompleteFn func(ctx context.Context, prompt string, maxTokens int) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Complete implements the interface method for testing.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, prompt, maxTokens)
	}
	return "", nil
}

// Calls returns how many completions were requested.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of the recorded prompts in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

var _ llm.Completer = (*MockCompleter)(nil)
