package domain

import "strings"

// Normalize lowercases a raw question and collapses internal whitespace.
// The normalized form is the cache key for entity resolution.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Entities is the structured record recovered from a natural-language
// question. Fields are nil when not detected. Immutable after resolution.
type Entities struct {
	Players       []string `json:"player_names,omitempty"`
	PlayerNumber  *string  `json:"player_number,omitempty"`
	Opponent      *string  `json:"opponent,omitempty"`
	Statistic     *string  `json:"statistic,omitempty"`
	Comparison    *string  `json:"comparison,omitempty"`
	Value         *string  `json:"value,omitempty"`
	ExcludeTotals bool     `json:"exclude_totals,omitempty"`
	IsComparison  bool     `json:"is_comparison_query,omitempty"`
}

// HasPlayers returns true when at least one player name resolved.
func (e *Entities) HasPlayers() bool {
	return e != nil && len(e.Players) > 0
}

// QueryStatus is the validation outcome of a generated query.
type QueryStatus int

const (
	// QueryValid means the query passed the dry-run syntax check.
	QueryValid QueryStatus = iota
	// QueryRejected means the query failed a structural check.
	QueryRejected
	// QuerySyntaxError means the store's planner rejected the query text.
	QuerySyntaxError
)

func (s QueryStatus) String() string {
	switch s {
	case QueryValid:
		return "valid"
	case QueryRejected:
		return "rejected"
	case QuerySyntaxError:
		return "syntax_error"
	default:
		return "unknown"
	}
}

// GeneratedQuery is one generation attempt's output. A new value is created
// per attempt; it is immutable once validated.
type GeneratedQuery struct {
	SQL     string
	Status  QueryStatus
	Detail  string // rejection reason or planner error text
	Attempt int
}

// Tier identifies how far the fallback orchestrator advanced for a request.
type Tier int

const (
	// TierPrimary is the model-generated query path.
	TierPrimary Tier = iota
	// TierSimplifiedAggregate is a parameterized aggregate template.
	TierSimplifiedAggregate
	// TierBasicSelect is an unfiltered select with a row limit.
	TierBasicSelect
	// TierPlayerLookup is a direct player-name lookup.
	TierPlayerLookup
	// TierFailed means every tier was exhausted.
	TierFailed
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSimplifiedAggregate:
		return "simplified_aggregate"
	case TierBasicSelect:
		return "basic_select"
	case TierPlayerLookup:
		return "player_lookup"
	case TierFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PipelineResult is the final outcome of one processed question.
// The caller owns persistence.
type PipelineResult struct {
	Answer     string `json:"response"`
	SQL        string `json:"sql_query,omitempty"`
	Success    bool   `json:"success"`
	Tier       Tier   `json:"-"`
	TierName   string `json:"tier"`
	TokensUsed int    `json:"tokens"`
	RequestID  string `json:"request_id"`
}
