// Package respond turns query results into natural-language answers.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"courtql/internal/exec"
	"courtql/internal/llm"
)

// promptRowLimit caps how many rows are shown to the model and in the
// deterministic fallback rendering.
const promptRowLimit = 10

// Formatter produces an answer for a question from its query result. It
// prefers a model completion and degrades to a deterministic rendering
// when no backend is configured or the completion fails.
type Formatter struct {
	completer llm.Completer
	maxTokens int
	logger    *slog.Logger
}

func New(completer llm.Completer, maxTokens int, logger *slog.Logger) *Formatter {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		completer: completer,
		maxTokens: maxTokens,
		logger:    logger.With("component", "respond"),
	}
}

// Format renders an answer for the question given the executed SQL and
// its result.
func (f *Formatter) Format(ctx context.Context, question, sqlText string, result *exec.Result) string {
	if result == nil || result.Empty() {
		return "No data found for that question."
	}
	if f.completer != nil {
		answer, err := f.completer.Complete(ctx, f.buildPrompt(question, sqlText, result), f.maxTokens)
		if err == nil && strings.TrimSpace(answer) != "" {
			return strings.TrimSpace(answer)
		}
		if err != nil {
			f.logger.Warn("answer completion failed, using plain rendering", "error", err)
		}
	}
	return renderPlain(result)
}

// FormatFailure reports that no strategy produced an answer. Tier names
// are user-facing; backend error details never are.
func (f *Formatter) FormatFailure(tiers []string) string {
	if len(tiers) == 0 {
		return "I couldn't answer that question."
	}
	return fmt.Sprintf(
		"I couldn't answer that question. I tried %d different approaches (%s) but none produced a result. Try rephrasing, or ask about a specific player or game.",
		len(tiers), strings.Join(tiers, ", "))
}

func (f *Formatter) buildPrompt(question, sqlText string, result *exec.Result) string {
	var b strings.Builder
	b.WriteString("You are a basketball statistics assistant. Answer the user's question using ONLY the query results below.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nSQL used:\n")
	b.WriteString(sqlText)
	fmt.Fprintf(&b, "\n\nResults (%d row(s)", result.RowCount)
	if result.RowCount > promptRowLimit {
		fmt.Fprintf(&b, ", first %d shown", promptRowLimit)
	}
	b.WriteString("):\n")
	b.WriteString(renderRows(result))
	b.WriteString("\nGive a concise, conversational answer. Round percentages to one decimal place. Do not mention SQL or the table structure.")
	return b.String()
}

// renderPlain is the deterministic fallback answer.
func renderPlain(result *exec.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s):\n", result.RowCount)
	b.WriteString(renderRows(result))
	return strings.TrimRight(b.String(), "\n")
}

func renderRows(result *exec.Result) string {
	var b strings.Builder
	for i, row := range result.Rows {
		if i >= promptRowLimit {
			break
		}
		parts := make([]string, 0, len(row))
		for j, v := range row {
			col := ""
			if j < len(result.Columns) {
				col = result.Columns[j]
			}
			parts = append(parts, fmt.Sprintf("%s=%s", col, formatValue(v)))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
