// Package entity turns raw questions into structured entity records using
// a completion call plus fuzzy resolution against the catalog. Extraction
// never fails the pipeline: model errors degrade to a pattern extractor.
package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"courtql/internal/catalog"
	"courtql/internal/domain"
	"courtql/internal/llm"
)

// Resolver extracts and resolves entities. Resolved records are cached by
// normalized query text for the process lifetime, so identical questions
// trigger at most one completion call.
type Resolver struct {
	completer llm.Completer
	catalog   *catalog.Catalog
	logger    *slog.Logger
	maxTokens int

	mu     sync.RWMutex
	cache  map[string]*domain.Entities
	flight singleflight.Group
}

// New creates a Resolver. completer may be nil, in which case only the
// deterministic pattern extractor runs.
func New(completer llm.Completer, cat *catalog.Catalog, maxTokens int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		completer: completer,
		catalog:   cat,
		logger:    logger.With("component", "entity-resolver"),
		maxTokens: maxTokens,
		cache:     make(map[string]*domain.Entities),
	}
}

// Extract returns the resolved entity record for a question. Identical
// normalized questions share one in-flight extraction and hit the cache
// afterwards. The returned record must not be mutated.
func (r *Resolver) Extract(ctx context.Context, raw string) *domain.Entities {
	key := domain.Normalize(raw)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	v, _, _ := r.flight.Do(key, func() (interface{}, error) {
		ents := r.extract(ctx, raw)
		r.mu.Lock()
		r.cache[key] = ents
		r.mu.Unlock()
		return ents, nil
	})
	return v.(*domain.Entities)
}

func (r *Resolver) extract(ctx context.Context, raw string) *domain.Entities {
	ents := r.modelExtract(ctx, raw)
	if ents == nil {
		r.logger.Debug("falling back to pattern extraction", "query", raw)
		ents = patternExtract(raw)
	}
	return r.resolve(ents)
}

// modelExtract asks the completion service for a fixed-shape JSON record.
// Any failure, including a response whose JSON does not decode, returns nil.
func (r *Resolver) modelExtract(ctx context.Context, raw string) *domain.Entities {
	if r.completer == nil {
		return nil
	}

	prompt := fmt.Sprintf(`Extract entities from this basketball statistics question.
Return a JSON object with these fields:
- player_names: array of player names mentioned
- player_number: jersey number if mentioned
- opponent: opponent team if mentioned
- statistic: statistic mentioned (points, rebounds, assists, etc.)
- comparison: comparison operator (>, <, =, etc.)
- value: numeric value for comparison
- exclude_totals: true if the question wants individual players only
- is_comparison_query: true if comparing multiple players

Question: %s

JSON output:`, raw)

	text, err := r.completer.Complete(ctx, prompt, r.maxTokens)
	if err != nil {
		r.logger.Warn("entity completion failed", "error", err)
		return nil
	}

	ents, err := decodeEntities(text)
	if err != nil {
		r.logger.Warn("entity decode failed", "error", err)
		return nil
	}
	return ents
}

// decodeEntities parses the model's JSON strictly, field by field. A field
// of unexpected shape is dropped rather than trusted; a response with no
// JSON object at all is an error.
func decodeEntities(text string) (*domain.Entities, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, domain.ErrExtraction("no JSON object in completion output")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
		return nil, domain.ErrExtraction("malformed JSON: %v", err)
	}

	ents := &domain.Entities{}
	if raw, ok := fields["player_names"]; ok {
		var names []string
		if err := json.Unmarshal(raw, &names); err == nil {
			ents.Players = compactNonEmpty(names)
		} else {
			// A single name sometimes arrives as a bare string.
			var one string
			if err := json.Unmarshal(raw, &one); err == nil && one != "" {
				ents.Players = []string{one}
			}
		}
	}
	ents.PlayerNumber = stringField(fields, "player_number")
	ents.Opponent = stringField(fields, "opponent")
	ents.Statistic = stringField(fields, "statistic")
	ents.Comparison = stringField(fields, "comparison")
	ents.Value = stringField(fields, "value")
	if raw, ok := fields["exclude_totals"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			ents.ExcludeTotals = b
		}
	}
	if raw, ok := fields["is_comparison_query"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			ents.IsComparison = b
		}
	}
	return ents, nil
}

// stringField decodes a field that may arrive as a string or a number.
// Anything else, including null, is treated as absent.
func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		s := n.String()
		return &s
	}
	return nil
}

var (
	numberPattern     = regexp.MustCompile(`(?i)#(\d+)|No\.\s*(\d+)|number\s+(\d+)`)
	comparisonPattern = regexp.MustCompile(`more than|less than|at least|at most|>=|<=|>|<|=`)
	valuePattern      = regexp.MustCompile(`\b(\d+)\b`)
)

// statTerms maps shorthand and full stat words onto canonical statistic
// names, checked in order so longer phrases win.
var statTerms = []struct{ term, canonical string }{
	{"three pointers", "three pointers"},
	{"three-pointers", "three pointers"},
	{"free throws", "free throws"},
	{"field goals", "field goals"},
	{"points", "points"},
	{"rebounds", "rebounds"},
	{"assists", "assists"},
	{"steals", "steals"},
	{"blocks", "blocks"},
	{"turnovers", "turnovers"},
	{"minutes", "minutes"},
	{"pts", "points"},
	{"reb", "rebounds"},
	{"ast", "assists"},
	{"stl", "steals"},
	{"blk", "blocks"},
}

// patternExtract recovers a reduced entity subset deterministically.
// It never identifies player names; only the model path does that.
func patternExtract(raw string) *domain.Entities {
	ents := &domain.Entities{}
	lower := strings.ToLower(raw)

	if m := numberPattern.FindStringSubmatch(raw); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				ents.PlayerNumber = &g
				break
			}
		}
	}
	for _, st := range statTerms {
		if strings.Contains(lower, st.term) {
			canonical := st.canonical
			ents.Statistic = &canonical
			break
		}
	}
	if m := comparisonPattern.FindString(lower); m != "" {
		ents.Comparison = &m
	}
	if m := valuePattern.FindStringSubmatch(raw); m != nil {
		ents.Value = &m[1]
	}
	return ents
}

// resolve matches extracted names against the catalog. Candidates below
// the similarity threshold stay unresolved rather than guessed.
func (r *Resolver) resolve(ents *domain.Entities) *domain.Entities {
	if r.catalog == nil {
		return ents
	}

	var resolved []string
	for _, name := range ents.Players {
		if match, ok := r.catalog.ResolvePlayer(name); ok {
			resolved = append(resolved, match)
		} else {
			r.logger.Debug("player name unresolved", "candidate", name)
		}
	}
	ents.Players = resolved

	if ents.PlayerNumber != nil {
		if match, ok := r.catalog.ResolveNumber(*ents.PlayerNumber); ok {
			ents.PlayerNumber = &match
		} else {
			ents.PlayerNumber = nil
		}
	}
	if ents.Opponent != nil {
		if match, ok := r.catalog.ResolveOpponent(*ents.Opponent); ok {
			ents.Opponent = &match
		} else {
			ents.Opponent = nil
		}
	}
	return ents
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
