package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite_DialectTranslation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "extract year becomes strftime",
			in:   "SELECT EXTRACT(YEAR FROM game_date) FROM player_stats",
			want: "SELECT strftime('%Y', game_date) FROM player_stats",
		},
		{
			name: "extract month becomes strftime",
			in:   "SELECT EXTRACT(MONTH FROM game_date) FROM player_stats",
			want: "SELECT strftime('%m', game_date) FROM player_stats",
		},
		{
			name: "interval addition becomes date function",
			in:   "SELECT * FROM player_stats WHERE game_date < game_date + INTERVAL '7' DAY",
			want: "SELECT * FROM player_stats WHERE game_date < date(game_date, '+7 days')",
		},
		{
			name: "postgres cast suffix removed",
			in:   "SELECT Pts::float FROM player_stats",
			want: "SELECT Pts FROM player_stats",
		},
		{
			name: "ilike becomes like",
			in:   "SELECT * FROM player_stats WHERE Name ILIKE '%maya%'",
			want: "SELECT * FROM player_stats WHERE Name LIKE '%maya%'",
		},
		{
			name: "empty input unchanged",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Rewrite(tt.in))
		})
	}
}

func TestRewrite_ColumnQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "three point columns quoted",
			in:   "SELECT 3PTM, 3PTA FROM player_stats",
			want: `SELECT "3PTM", "3PTA" FROM player_stats`,
		},
		{
			name: "jersey number quoted before comparison",
			in:   "SELECT * FROM player_stats WHERE No = 12",
			want: `SELECT * FROM player_stats WHERE "No" = 12`,
		},
		{
			name: "jersey number quoted before IN",
			in:   "SELECT * FROM player_stats WHERE No IN (4, 12)",
			want: `SELECT * FROM player_stats WHERE "No" IN (4, 12)`,
		},
		{
			name: "turnovers quoted in aggregate",
			in:   "SELECT SUM(TO) FROM player_stats",
			want: `SELECT SUM("TO") FROM player_stats`,
		},
		{
			name: "turnovers quoted in comparison",
			in:   "SELECT Name FROM player_stats WHERE TO > 5",
			want: `SELECT Name FROM player_stats WHERE "TO" > 5`,
		},
		{
			name: "already quoted turnovers unchanged",
			in:   `SELECT ROUND(AVG("TO"), 1) FROM player_stats`,
			want: `SELECT ROUND(AVG("TO"), 1) FROM player_stats`,
		},
		{
			name: "rebound split column quoted",
			in:   "SELECT OR-DR FROM player_stats",
			want: `SELECT "OR-DR" FROM player_stats`,
		},
		{
			name: "doubled quotes collapsed",
			in:   `SELECT ""Pts"" FROM player_stats`,
			want: `SELECT "Pts" FROM player_stats`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Rewrite(tt.in))
		})
	}
}

func TestRewrite_StructuralRepair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "missing closer appended",
			in:   "SELECT SUM(Pts FROM player_stats",
			want: "SELECT SUM(Pts FROM player_stats)",
		},
		{
			name: "trailing extra closers trimmed",
			in:   "SELECT Pts FROM player_stats))",
			want: "SELECT Pts FROM player_stats",
		},
		{
			name: "where followed by and repaired",
			in:   "SELECT * FROM player_stats WHERE AND Pts > 10",
			want: "SELECT * FROM player_stats WHERE Pts > 10",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Rewrite(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sql        string
		wantReason string
	}{
		{
			name:       "valid query passes",
			sql:        "SELECT Pts FROM player_stats WHERE Name = 'Carter, Maya'",
			wantReason: "",
		},
		{
			name:       "empty query",
			sql:        "   ",
			wantReason: "empty SQL query",
		},
		{
			name:       "leftover extract",
			sql:        "SELECT EXTRACT(YEAR FROM game_date) FROM player_stats",
			wantReason: "EXTRACT not supported in SQLite",
		},
		{
			name:       "leftover postgres cast",
			sql:        "SELECT Pts::numeric FROM player_stats",
			wantReason: "PostgreSQL casting (::) not supported",
		},
		{
			name:       "stddev",
			sql:        "SELECT STDDEV(Pts) FROM player_stats",
			wantReason: "STDDEV not supported in SQLite",
		},
		{
			name:       "aggregate inside group by",
			sql:        "SELECT Name FROM player_stats GROUP BY AVG(Pts)",
			wantReason: "aggregate functions not allowed in GROUP BY",
		},
		{
			name:       "no select",
			sql:        "EXPLAIN player_stats",
			wantReason: "query must contain SELECT",
		},
		{
			name:       "wrong table",
			sql:        "SELECT * FROM users",
			wantReason: "query must reference table player_stats",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantReason, Validate(tt.sql, "player_stats"))
		})
	}
}
