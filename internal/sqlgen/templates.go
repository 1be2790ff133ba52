package sqlgen

import (
	"fmt"
	"strings"

	"courtql/internal/domain"
)

// Template is one entry of the special-case registry: a detection
// predicate over the question and its entities, and a hand-authored query.
// Free-form generation is unreliable for a few recurring complex shapes,
// so those are substituted before prompting.
type Template struct {
	Name  string
	Match func(raw string, ents *domain.Entities) bool
	SQL   func(table string, ents *domain.Entities) string
}

// Registry returns the built-in templates, checked in order before
// generic generation.
func Registry() []Template {
	return []Template{
		{
			Name: "close_games_comparison",
			Match: func(raw string, ents *domain.Entities) bool {
				lower := strings.ToLower(raw)
				return strings.Contains(lower, "close") &&
					strings.Contains(lower, "game") &&
					len(ents.Players) >= 2
			},
			SQL: closeGamesSQL,
		},
		{
			Name: "opponent_strength_profile",
			Match: func(raw string, ents *domain.Entities) bool {
				lower := strings.ToLower(raw)
				return strings.Contains(lower, "opponent") &&
					(strings.Contains(lower, "strength") || strings.Contains(lower, "against all")) &&
					len(ents.Players) == 1
			},
			SQL: opponentProfileSQL,
		},
	}
}

// closeGamesSQL compares the named players across games the team finished
// within a narrow margin, approximated by the Totals row landing between
// 70 and 90 points.
func closeGamesSQL(table string, ents *domain.Entities) string {
	return fmt.Sprintf(`SELECT
  Name,
  COUNT(*) as games_played,
  ROUND(AVG(Pts), 1) as avg_pts,
  ROUND(AVG(Ast), 1) as avg_ast,
  ROUND(AVG(Reb), 1) as avg_reb,
  ROUND(AVG("TO"), 1) as avg_to,
  ROUND(CAST(SUM(FGM) AS REAL) / NULLIF(SUM(FGA), 0) * 100, 1) as fg_pct,
  ROUND(CAST(SUM("3PTM") AS REAL) / NULLIF(SUM("3PTA"), 0) * 100, 1) as three_pt_pct
FROM %[1]s
WHERE Name IN (%[2]s)
  AND Name NOT IN ('Totals', 'TM', 'Team')
  AND game_date IN (
    SELECT game_date
    FROM %[1]s
    WHERE Name = 'Totals'
      AND Pts BETWEEN 70 AND 90
  )
GROUP BY Name
ORDER BY avg_pts DESC`, table, quoteList(ents.Players))
}

// opponentProfileSQL aggregates one player's production across every
// opponent faced, sidestepping the aggregate-in-GROUP-BY queries models
// produce for "opponent strength" questions.
func opponentProfileSQL(table string, ents *domain.Entities) string {
	return fmt.Sprintf(`SELECT
  'vs_all_opponents' as analysis_type,
  COUNT(*) as games_played,
  ROUND(AVG(Pts), 1) as avg_points,
  ROUND(AVG(Reb), 1) as avg_rebounds,
  ROUND(CAST(SUM(FGM) AS REAL) / NULLIF(SUM(FGA), 0) * 100, 1) as fg_percentage,
  ROUND(AVG(Blk), 1) as avg_blocks,
  GROUP_CONCAT(DISTINCT Opponent) as opponents_faced
FROM %s
WHERE Name = %s
  AND Name NOT IN ('Totals', 'TM', 'Team')`, table, quoteLiteral(ents.Players[0]))
}

// quoteLiteral escapes a value as a SQL string literal.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// quoteList renders a comma-separated list of SQL string literals.
func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteLiteral(v)
	}
	return strings.Join(quoted, ", ")
}
