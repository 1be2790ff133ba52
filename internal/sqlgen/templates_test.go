package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtql/internal/domain"
)

func findTemplate(t *testing.T, name string) Template {
	t.Helper()
	for _, tpl := range Registry() {
		if tpl.Name == name {
			return tpl
		}
	}
	t.Fatalf("template %s not registered", name)
	return Template{}
}

func TestCloseGamesTemplate(t *testing.T) {
	t.Parallel()

	tpl := findTemplate(t, "close_games_comparison")
	two := &domain.Entities{Players: []string{"Carter, Maya", "Nguyen, Alyssa"}}

	assert.True(t, tpl.Match("compare Maya and Alyssa in close games", two))
	assert.False(t, tpl.Match("compare Maya and Alyssa per game", two))
	assert.False(t, tpl.Match("close games for Maya", &domain.Entities{Players: []string{"Carter, Maya"}}))

	sql := tpl.SQL("player_stats", two)
	assert.Contains(t, sql, "'Carter, Maya', 'Nguyen, Alyssa'")
	assert.Contains(t, sql, "Pts BETWEEN 70 AND 90")
	assert.Contains(t, sql, "Name NOT IN ('Totals', 'TM', 'Team')")
	assert.Contains(t, sql, "FROM player_stats")
	assert.Empty(t, Validate(sql, "player_stats"))
}

func TestOpponentProfileTemplate(t *testing.T) {
	t.Parallel()

	tpl := findTemplate(t, "opponent_strength_profile")
	one := &domain.Entities{Players: []string{"Okafor, Chidinma"}}

	assert.True(t, tpl.Match("how does Chidinma do by opponent strength", one))
	assert.True(t, tpl.Match("Chidinma against all opponents", one))
	assert.False(t, tpl.Match("opponent strength", &domain.Entities{}))

	sql := tpl.SQL("player_stats", one)
	assert.Contains(t, sql, "'Okafor, Chidinma'")
	assert.Contains(t, sql, "GROUP_CONCAT(DISTINCT Opponent)")
	assert.Empty(t, Validate(sql, "player_stats"))
}

func TestQuoteLiteral_EscapesQuotes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "'O''Brien, Kate'", quoteLiteral("O'Brien, Kate"))
	require.Equal(t, "'a', 'b'", quoteList([]string{"a", "b"}))
}
