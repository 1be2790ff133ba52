package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtql/internal/catalog"
	"courtql/internal/domain"
	"courtql/internal/entity"
	"courtql/internal/exec"
	"courtql/internal/llm"
	"courtql/internal/respond"
	"courtql/internal/schema"
	"courtql/internal/sqlgen"
	"courtql/internal/testutil"
)

func openStatsDB(t *testing.T, seed bool) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// In-memory databases are per-connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE player_stats (
		Name TEXT, "No" INTEGER, Pts INTEGER, Reb INTEGER, Ast INTEGER,
		Opponent TEXT, game_date TEXT
	)`)
	require.NoError(t, err)
	if seed {
		_, err = db.Exec(`INSERT INTO player_stats VALUES
			('Carter, Maya', 12, 21, 5, 4, 'Stanford', '2025-01-10'),
			('Nguyen, Alyssa', 4, 14, 3, 7, 'Stanford', '2025-01-10'),
			('Okafor, Chidinma', 21, 11, 9, 1, 'Stanford', '2025-01-10'),
			('Totals', NULL, 78, 30, 15, 'Stanford', '2025-01-10')`)
		require.NoError(t, err)
	}
	return db
}

// entityJSON is what the extraction completer returns for questions
// naming Maya.
const entityJSON = `{"player_names": ["Carter, Maya"], "statistic": "points"}`

func newPipeline(t *testing.T, db *sql.DB, extractFn, generateFn func(ctx context.Context, prompt string, maxTokens int) (string, error)) *Pipeline {
	t.Helper()

	desc, err := schema.Load()
	require.NoError(t, err)

	cat := catalog.New(db, "player_stats", 0.75, nil)
	require.NoError(t, cat.Refresh(context.Background()))

	var extractor *testutil.MockCompleter
	if extractFn != nil {
		extractor = &testutil.MockCompleter{CompleteFn: extractFn}
	}
	var resolver *entity.Resolver
	if extractor != nil {
		resolver = entity.New(extractor, cat, 500, nil)
	} else {
		resolver = entity.New(nil, cat, 500, nil)
	}

	executor := exec.New(db, "player_stats", 5*time.Second, 50, nil)

	var genCompleter *testutil.MockCompleter
	if generateFn != nil {
		genCompleter = &testutil.MockCompleter{CompleteFn: generateFn}
	}
	generator := sqlgen.New(sqlgen.GeneratorOptions{
		Completer: completerOrNil(genCompleter),
		DryRunner: executor,
		Schema:    desc,
		Table:     "player_stats",
		Attempts:  2,
	})

	return New(Options{
		Resolver:  resolver,
		Generator: generator,
		Executor:  executor,
		Formatter: respond.New(nil, 1000, nil),
		Schema:    desc,
		Table:     "player_stats",
	})
}

// completerOrNil avoids handing a typed nil pointer to an interface field.
func completerOrNil(m *testutil.MockCompleter) llm.Completer {
	if m == nil {
		return nil
	}
	return m
}

func fixedResponse(text string) func(context.Context, string, int) (string, error) {
	return func(context.Context, string, int) (string, error) { return text, nil }
}

func TestProcess_PrimarySuccess(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, true)
	p := newPipeline(t, db,
		fixedResponse(entityJSON),
		fixedResponse("SELECT Name, Pts FROM player_stats WHERE Name = 'Carter, Maya'"))

	res := p.Process(context.Background(), "how many points does Maya average?")

	require.True(t, res.Success)
	assert.Equal(t, domain.TierPrimary, res.Tier)
	assert.Equal(t, "primary", res.TierName)
	assert.Contains(t, res.SQL, "Carter, Maya")
	assert.NotEmpty(t, res.Answer)
	assert.Positive(t, res.TokensUsed)
	assert.NotEmpty(t, res.RequestID)
}

func TestProcess_FallsBackWhenGenerationInvalid(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, true)
	p := newPipeline(t, db,
		fixedResponse(entityJSON),
		fixedResponse("DELETE FROM player_stats"))

	res := p.Process(context.Background(), "something the model answers badly")

	require.True(t, res.Success)
	assert.Equal(t, domain.TierSimplifiedAggregate, res.Tier)
	assert.Contains(t, res.SQL, "AVG(")
	assert.Contains(t, res.SQL, "NOT IN ('Totals', 'TM', 'Team')")
}

func TestProcess_GateBlocksBeforeExecution(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, true)
	// Passes generation-side validation and the planner dry run, but the
	// gate rejects comments.
	p := newPipeline(t, db,
		fixedResponse(entityJSON),
		fixedResponse("SELECT Name FROM player_stats -- hidden"))

	res := p.Process(context.Background(), "points for Maya")

	require.True(t, res.Success)
	assert.Equal(t, domain.TierSimplifiedAggregate, res.Tier)
	assert.NotContains(t, res.SQL, "--")
}

func TestProcess_EmptyResultDropsPlayerFilter(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, true)
	p := newPipeline(t, db,
		fixedResponse(entityJSON),
		fixedResponse("SELECT Name, Pts FROM player_stats WHERE Name = 'Zz, Nobody'"))

	res := p.Process(context.Background(), "points for Maya")

	require.True(t, res.Success)
	assert.Equal(t, domain.TierPrimary, res.Tier)
	assert.Contains(t, res.SQL, "1=1")
	assert.NotContains(t, res.SQL, "Zz, Nobody")
}

func TestProcess_AllTiersExhausted(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, false)
	p := newPipeline(t, db,
		nil,
		func(context.Context, string, int) (string, error) {
			return "", errors.New("backend down")
		})

	res := p.Process(context.Background(), "who scored the most points?")

	require.False(t, res.Success)
	assert.Equal(t, domain.TierFailed, res.Tier)
	assert.Equal(t, "failed", res.TierName)
	assert.Contains(t, res.Answer, "couldn't answer")
	assert.NotContains(t, res.Answer, "backend down")
	assert.Empty(t, res.SQL)
}

func TestProcess_EmptyQuestion(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, true)
	p := newPipeline(t, db, nil, nil)

	res := p.Process(context.Background(), "   ")

	require.False(t, res.Success)
	assert.Equal(t, domain.TierFailed, res.Tier)
	assert.Contains(t, res.Answer, "ask a question")
	assert.NotEmpty(t, res.RequestID)
}

func TestProcess_EachTierRunsAtMostOnce(t *testing.T) {
	t.Parallel()

	db := openStatsDB(t, true)
	calls := 0
	p := newPipeline(t, db,
		fixedResponse(entityJSON),
		func(context.Context, string, int) (string, error) {
			calls++
			return "not sql at all", nil
		})

	res := p.Process(context.Background(), "gibberish question about Maya")

	require.True(t, res.Success)
	assert.Equal(t, domain.TierSimplifiedAggregate, res.Tier)
	assert.LessOrEqual(t, calls, 2, "generation is bounded by the attempt limit")
}

func TestStripPlayerFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "equality filter removed",
			in:   "SELECT * FROM player_stats WHERE Name = 'Carter, Maya' AND Pts > 10",
			want: "SELECT * FROM player_stats WHERE 1=1 AND Pts > 10",
		},
		{
			name: "like filter removed",
			in:   "SELECT * FROM player_stats WHERE Name LIKE '%Maya%'",
			want: "SELECT * FROM player_stats WHERE 1=1",
		},
		{
			name: "in list removed",
			in:   "SELECT * FROM player_stats WHERE Name IN ('Carter, Maya', 'Nguyen, Alyssa')",
			want: "SELECT * FROM player_stats WHERE 1=1",
		},
		{
			name: "summary exclusion preserved",
			in:   "SELECT * FROM player_stats WHERE Name = 'X' AND Name NOT IN ('Totals', 'TM', 'Team')",
			want: "SELECT * FROM player_stats WHERE 1=1 AND Name NOT IN ('Totals', 'TM', 'Team')",
		},
		{
			name: "no filter unchanged",
			in:   "SELECT * FROM player_stats",
			want: "SELECT * FROM player_stats",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, stripPlayerFilter(tt.in))
		})
	}
}
