// Package catalog maintains a read snapshot of known entity values
// (player names, jersey numbers, opponents) and resolves free-text
// candidates against it with fuzzy matching.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Catalog holds the distinct-value snapshot. The snapshot is loaded at
// process start and replaced wholesale on refresh, so readers never see a
// partially updated state.
type Catalog struct {
	db        *sql.DB
	table     string
	threshold float64
	logger    *slog.Logger

	mu   sync.RWMutex
	snap snapshot
}

type snapshot struct {
	players   []string
	numbers   []string
	opponents []string
}

// New creates a Catalog over the statistics table. threshold is the fuzzy
// acceptance similarity in (0, 1]. Call Refresh before first use.
func New(db *sql.DB, table string, threshold float64, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		db:        db,
		table:     table,
		threshold: threshold,
		logger:    logger.With("component", "catalog"),
	}
}

// Refresh reloads the distinct-value snapshot from the store.
func (c *Catalog) Refresh(ctx context.Context) error {
	players, err := c.distinct(ctx, "Name")
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	numbers, err := c.distinct(ctx, `"No"`)
	if err != nil {
		return fmt.Errorf("load numbers: %w", err)
	}
	opponents, err := c.distinct(ctx, "Opponent")
	if err != nil {
		return fmt.Errorf("load opponents: %w", err)
	}

	c.mu.Lock()
	c.snap = snapshot{players: players, numbers: numbers, opponents: opponents}
	c.mu.Unlock()

	c.logger.Info("catalog refreshed",
		"players", len(players), "numbers", len(numbers), "opponents", len(opponents))
	return nil
}

func (c *Catalog) distinct(ctx context.Context, column string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s != '' ORDER BY %s LIMIT 1000`,
		column, c.table, column, column, column)
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Players returns the known player names, Totals rows included.
func (c *Catalog) Players() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.players
}

// Opponents returns the known opponent names.
func (c *Catalog) Opponents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.opponents
}

// ResolvePlayer fuzzy-matches a candidate against known player names.
// Returns the catalog entry and true on a match at or above the threshold;
// below threshold the candidate stays unresolved.
func (c *Catalog) ResolvePlayer(candidate string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bestMatch(candidate, c.snap.players, c.threshold)
}

// ResolveOpponent fuzzy-matches a candidate against known opponents.
func (c *Catalog) ResolveOpponent(candidate string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bestMatch(candidate, c.snap.opponents, c.threshold)
}

// ResolveNumber matches a jersey number. Numbers only resolve exactly;
// fuzzy matching single digits would guess rather than recognize.
func (c *Catalog) ResolveNumber(candidate string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	candidate = strings.TrimSpace(candidate)
	for _, n := range c.snap.numbers {
		if n == candidate {
			return n, true
		}
	}
	return "", false
}

// bestMatch returns the option with the highest similarity to candidate,
// if that similarity meets the threshold. Similarity is 1 - lev/maxLen,
// compared case-insensitively.
func bestMatch(candidate string, options []string, threshold float64) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(options) == 0 {
		return "", false
	}

	best := ""
	bestScore := -1.0
	lower := strings.ToLower(candidate)
	for _, opt := range options {
		s := similarity(lower, strings.ToLower(opt))
		if s > bestScore {
			best, bestScore = opt, s
		}
	}
	if bestScore >= threshold {
		return best, true
	}
	return "", false
}

// similarity scores two lowercased strings in [0, 1]. A candidate that
// equals one of the option's tokens ("carter" against "carter, maya")
// scores 1, since plain edit distance rates partial names poorly.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if containsToken(b, a) {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// containsToken reports whether needle equals one of haystack's
// comma/space-separated tokens.
func containsToken(haystack, needle string) bool {
	for _, tok := range strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		if tok == needle {
			return true
		}
	}
	return false
}
