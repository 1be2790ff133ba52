package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"courtql/internal/domain"
	"courtql/internal/llm"
	"courtql/internal/schema"
)

// DryRunner checks a statement against the live planner without
// executing it.
type DryRunner interface {
	DryRun(ctx context.Context, sql string) error
}

// Generator turns a resolved question into a validated SELECT statement.
// It consults the template registry first, then prompts the model up to
// a bounded number of attempts, feeding planner errors back into the
// retry prompt.
type Generator struct {
	completer llm.Completer
	dryRunner DryRunner
	table     string
	prompt    string
	attempts  int
	maxTokens int
	registry  []Template
	terms     []termRule
	logger    *slog.Logger
}

type termRule struct {
	re   *regexp.Regexp
	repl string
}

// GeneratorOptions configures New.
type GeneratorOptions struct {
	Completer llm.Completer
	DryRunner DryRunner
	Schema    *schema.Descriptor
	Table     string
	Attempts  int
	MaxTokens int
	Registry  []Template
	Logger    *slog.Logger
}

func New(opts GeneratorOptions) *Generator {
	if opts.Attempts < 1 {
		opts.Attempts = 2
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		completer: opts.Completer,
		dryRunner: opts.DryRunner,
		table:     opts.Table,
		prompt:    opts.Schema.PromptSchema(),
		attempts:  opts.Attempts,
		maxTokens: opts.MaxTokens,
		registry:  opts.Registry,
		terms:     compileTermRules(opts.Schema.TermMap()),
		logger:    opts.Logger.With("component", "sqlgen"),
	}
}

// Generate produces a query for the question. The returned status is
// QueryValid only when the statement survived the dialect rewrite, the
// structural validator, and a planner dry run.
func (g *Generator) Generate(ctx context.Context, raw string, ents *domain.Entities) domain.GeneratedQuery {
	for _, tpl := range g.registry {
		if tpl.Match(raw, ents) {
			sql := tpl.SQL(g.table, ents)
			g.logger.Debug("matched query template", "template", tpl.Name)
			return domain.GeneratedQuery{SQL: sql, Status: domain.QueryValid}
		}
	}

	if g.completer == nil {
		return domain.GeneratedQuery{
			Status: domain.QueryRejected,
			Detail: "no completion backend configured",
		}
	}

	mapped := g.mapTerms(raw)
	var lastErr string
	for attempt := 1; attempt <= g.attempts; attempt++ {
		prompt := g.buildPrompt(mapped, ents, lastErr)
		text, err := g.completer.Complete(ctx, prompt, g.maxTokens)
		if err != nil {
			return domain.GeneratedQuery{
				Status:  domain.QueryRejected,
				Detail:  fmt.Sprintf("completion failed: %v", err),
				Attempt: attempt,
			}
		}
		sql := Rewrite(ExtractSQL(text))
		if reason := Validate(sql, g.table); reason != "" {
			g.logger.Debug("generated query rejected", "attempt", attempt, "reason", reason)
			lastErr = reason
			continue
		}
		if g.dryRunner != nil {
			if err := g.dryRunner.DryRun(ctx, sql); err != nil {
				g.logger.Debug("dry run failed", "attempt", attempt, "error", err)
				lastErr = err.Error()
				continue
			}
		}
		return domain.GeneratedQuery{SQL: sql, Status: domain.QueryValid, Attempt: attempt}
	}
	return domain.GeneratedQuery{
		Status:  domain.QuerySyntaxError,
		Detail:  lastErr,
		Attempt: g.attempts,
	}
}

// mapTerms substitutes colloquial statistic terms with their column
// names before prompting, longest terms first so "three point
// percentage" wins over "three point".
func (g *Generator) mapTerms(raw string) string {
	out := raw
	for _, rule := range g.terms {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return out
}

func compileTermRules(terms map[string]string) []termRule {
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	rules := make([]termRule, 0, len(keys))
	for _, k := range keys {
		pattern := "(?i)"
		if isWordByte(k[0]) {
			pattern += `\b`
		}
		pattern += regexp.QuoteMeta(k)
		if isWordByte(k[len(k)-1]) {
			pattern += `\b`
		}
		rules = append(rules, termRule{re: regexp.MustCompile(pattern), repl: terms[k]})
	}
	return rules
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (g *Generator) buildPrompt(question string, ents *domain.Entities, priorError string) string {
	var b strings.Builder
	b.WriteString("You are a SQLite expert. Generate a SQL query for a basketball statistics database.\n\n")
	b.WriteString(g.prompt)
	b.WriteString("\n\n")
	if ents != nil {
		if enc, err := json.Marshal(ents); err == nil {
			b.WriteString("Extracted entities: ")
			b.Write(enc)
			b.WriteString("\n\n")
		}
	}
	b.WriteString(`CRITICAL SQLite RULES:
- FORBIDDEN: EXTRACT, INTERVAL, STDDEV, ILIKE, ::, PostgreSQL syntax of any kind
- Use strftime('%Y', game_date) instead of EXTRACT(YEAR FROM game_date)
- Use CAST(x AS REAL) for division, never ::float
- Column names needing double quotes: "No", "3PTM", "3PTA", "OR-DR", "TO"
- Always exclude summary rows: Name NOT IN ('Totals', 'TM', 'Team')
- Guard division with NULLIF, e.g. CAST(FGM AS REAL) / NULLIF(FGA, 0)
- Avoid complex CTEs; prefer simple SELECT with WHERE and GROUP BY
- Never use aggregate functions inside GROUP BY
`)
	if priorError != "" {
		b.WriteString("\nThe previous attempt failed with this error, fix it:\n")
		b.WriteString(priorError)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nGenerate ONLY the SQL query, no explanation, no markdown formatting.")
	return b.String()
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
	backtickRe    = regexp.MustCompile("`([^`]+)`")
	selectTailRe  = regexp.MustCompile(`(?is)\bSELECT\b.*`)
)

// ExtractSQL recovers the statement from a model response that may wrap
// it in markdown fences, inline backticks, or leading prose.
func ExtractSQL(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := backtickRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if selectTailRe.MatchString(candidate) {
			return candidate
		}
	}
	if m := selectTailRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return text
}
