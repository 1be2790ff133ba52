// Package pipeline orchestrates a question through entity resolution,
// query generation, the safety gate, execution, and answer formatting,
// degrading through progressively simpler query strategies.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"courtql/internal/domain"
	"courtql/internal/entity"
	"courtql/internal/exec"
	"courtql/internal/llm"
	"courtql/internal/respond"
	"courtql/internal/safety"
	"courtql/internal/schema"
	"courtql/internal/sqlgen"
)

// Pipeline processes questions end to end. Every statement, whether
// model-generated or built from a fallback template, passes the safety
// gate before it reaches the store.
type Pipeline struct {
	resolver  *entity.Resolver
	generator *sqlgen.Generator
	executor  *exec.Executor
	formatter *respond.Formatter
	table     string
	terms     map[string]string
	logger    *slog.Logger
}

// Options configures New.
type Options struct {
	Resolver  *entity.Resolver
	Generator *sqlgen.Generator
	Executor  *exec.Executor
	Formatter *respond.Formatter
	Schema    *schema.Descriptor
	Table     string
	Logger    *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var terms map[string]string
	if opts.Schema != nil {
		terms = opts.Schema.TermMap()
	}
	return &Pipeline{
		resolver:  opts.Resolver,
		generator: opts.Generator,
		executor:  opts.Executor,
		formatter: opts.Formatter,
		table:     opts.Table,
		terms:     terms,
		logger:    opts.Logger.With("component", "pipeline"),
	}
}

// Process answers one question. It never returns an error; failures
// surface as an unsuccessful result with a user-facing message.
func (p *Pipeline) Process(ctx context.Context, raw string) *domain.PipelineResult {
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &domain.PipelineResult{
			Answer:    "Please ask a question about the team's statistics.",
			Tier:      domain.TierFailed,
			TierName:  domain.TierFailed.String(),
			RequestID: requestID,
		}
	}

	ents := p.resolver.Extract(ctx, raw)
	var tried []string

	for tier := domain.TierPrimary; tier < domain.TierFailed; tier++ {
		sql, ok := p.tierSQL(ctx, tier, raw, ents)
		if !ok {
			// Generation counts as an attempt even when it yields no
			// usable query; an inapplicable fallback tier does not.
			if tier == domain.TierPrimary {
				tried = append(tried, tier.String())
			}
			logger.Debug("tier skipped", "tier", tier.String())
			continue
		}
		tried = append(tried, tier.String())

		result, execSQL, err := p.runGated(ctx, logger, sql)
		if err != nil {
			logger.Warn("tier failed", "tier", tier.String(), "error", err)
			continue
		}
		if result.Empty() && tier == domain.TierPrimary && ents.HasPlayers() {
			// A player filter that matched nothing usually means the
			// model invented a WHERE clause the data cannot satisfy.
			// Retry the same statement without it, once.
			if widened := stripPlayerFilter(execSQL); widened != execSQL {
				logger.Debug("retrying without player filter")
				if r2, s2, err2 := p.runGated(ctx, logger, widened); err2 == nil && !r2.Empty() {
					result, execSQL = r2, s2
				}
			}
		}
		if result.Empty() {
			logger.Debug("tier returned no rows", "tier", tier.String())
			continue
		}

		answer := p.formatter.Format(ctx, raw, execSQL, result)
		return &domain.PipelineResult{
			Answer:     answer,
			SQL:        execSQL,
			Success:    true,
			Tier:       tier,
			TierName:   tier.String(),
			TokensUsed: llm.EstimateTokens(answer),
			RequestID:  requestID,
		}
	}

	logger.Warn("all tiers exhausted", "tiers", tried)
	return &domain.PipelineResult{
		Answer:    p.formatter.FormatFailure(tried),
		Tier:      domain.TierFailed,
		TierName:  domain.TierFailed.String(),
		RequestID: requestID,
	}
}

// runGated checks a statement against the safety gate and executes it.
func (p *Pipeline) runGated(ctx context.Context, logger *slog.Logger, sqlText string) (*exec.Result, string, error) {
	if err := safety.Check(sqlText, p.table); err != nil {
		logger.Warn("statement blocked", "error", err)
		return nil, sqlText, err
	}
	result, err := p.executor.Execute(ctx, sqlText)
	return result, sqlText, err
}

// tierSQL produces the statement for a tier, or reports that the tier
// does not apply to this question.
func (p *Pipeline) tierSQL(ctx context.Context, tier domain.Tier, raw string, ents *domain.Entities) (string, bool) {
	switch tier {
	case domain.TierPrimary:
		q := p.generator.Generate(ctx, raw, ents)
		if q.Status != domain.QueryValid {
			p.logger.Debug("generation did not produce a valid query",
				"status", q.Status.String(), "detail", q.Detail)
			return "", false
		}
		return q.SQL, true
	case domain.TierSimplifiedAggregate:
		return p.aggregateSQL(ents), true
	case domain.TierBasicSelect:
		return fmt.Sprintf(
			`SELECT Name, Pts, Reb, Ast, Opponent, game_date FROM %s WHERE Name NOT IN ('Totals', 'TM', 'Team') ORDER BY Pts DESC LIMIT 10`,
			p.table), true
	case domain.TierPlayerLookup:
		if !ents.HasPlayers() {
			return "", false
		}
		return fmt.Sprintf(
			`SELECT * FROM %s WHERE Name IN (%s) ORDER BY game_date`,
			p.table, quoteList(ents.Players)), true
	default:
		return "", false
	}
}

// aggregateSQL builds the per-player averages statement, ordered by the
// statistic the question asked about when one resolved.
func (p *Pipeline) aggregateSQL(ents *domain.Entities) string {
	orderCol := "Pts"
	if ents != nil && ents.Statistic != nil {
		if col, ok := p.terms[strings.ToLower(*ents.Statistic)]; ok && !strings.ContainsAny(col, "(") {
			orderCol = col
		}
	}
	playerFilter := ""
	if ents.HasPlayers() {
		playerFilter = fmt.Sprintf(" AND Name IN (%s)", quoteList(ents.Players))
	}
	return fmt.Sprintf(
		`SELECT Name, COUNT(*) as games_played, ROUND(AVG(%s), 1) as avg_stat, ROUND(AVG(Pts), 1) as avg_pts, ROUND(AVG(Reb), 1) as avg_reb, ROUND(AVG(Ast), 1) as avg_ast FROM %s WHERE Name NOT IN ('Totals', 'TM', 'Team')%s GROUP BY Name ORDER BY avg_stat DESC`,
		orderCol, p.table, playerFilter)
}

var (
	nameEqRe = regexp.MustCompile(`(?i)Name\s*(?:=|LIKE)\s*'[^']*'`)
	nameInRe = regexp.MustCompile(`(?i)\bName\s+IN\s*\((?:[^()']|'[^']*')*\)`)
)

// stripPlayerFilter neutralizes name predicates so the statement keeps
// its structure but matches every player. Summary-row exclusions survive
// because their NOT sits between Name and IN.
func stripPlayerFilter(sqlText string) string {
	sqlText = nameEqRe.ReplaceAllString(sqlText, "1=1")
	sqlText = nameInRe.ReplaceAllString(sqlText, "1=1")
	return sqlText
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
