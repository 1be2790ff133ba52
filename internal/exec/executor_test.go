package exec

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtql/internal/domain"
)

func openStatsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// In-memory SQLite is per-connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE player_stats (Name TEXT, "No" TEXT, Pts INTEGER, Reb INTEGER, Opponent TEXT, game_date TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO player_stats VALUES
		('Carter, Maya', '5', 24, 8, 'Stanford', '2025-01-05'),
		('Nguyen, Alyssa', '12', 17, 4, 'Stanford', '2025-01-05'),
		('Carter, Maya', '5', 28, 6, 'Oregon', '2025-01-12'),
		('Totals', '', 72, 27, 'Stanford', '2025-01-05')`)
	require.NoError(t, err)
	return db
}

func newExecutor(t *testing.T, rowCap int) *Executor {
	t.Helper()
	return New(openStatsDB(t), "player_stats", 5*time.Second, rowCap, nil)
}

func TestExecute(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 50)
	res, err := e.Execute(context.Background(), `SELECT Name, Pts FROM player_stats WHERE Opponent = 'Stanford' ORDER BY Pts DESC`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Pts"}, res.Columns)
	assert.Equal(t, 3, res.RowCount)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "Totals", res.Rows[0][0])
	assert.False(t, res.Empty())
}

func TestExecute_RowCap(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 2)
	res, err := e.Execute(context.Background(), `SELECT Name FROM player_stats`)
	require.NoError(t, err)

	assert.Equal(t, 4, res.RowCount, "total count past the cap")
	assert.Len(t, res.Rows, 2, "rows capped")
}

func TestExecute_EmptyResult(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 50)
	res, err := e.Execute(context.Background(), `SELECT Name FROM player_stats WHERE Pts > 1000`)
	require.NoError(t, err)

	assert.True(t, res.Empty())
	assert.Empty(t, res.Rows)
}

func TestExecute_BackendErrorIsTyped(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 50)
	_, err := e.Execute(context.Background(), `SELECT nope FROM player_stats`)
	require.Error(t, err)

	var execErr *domain.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.False(t, execErr.Timeout)
}

func TestExecute_TimeoutIsTyped(t *testing.T) {
	t.Parallel()

	e := New(openStatsDB(t), "player_stats", time.Nanosecond, 50, nil)
	_, err := e.Execute(context.Background(), `SELECT Name FROM player_stats`)
	require.Error(t, err)

	var execErr *domain.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.True(t, execErr.Timeout)
}

func TestDryRun(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 50)
	assert.NoError(t, e.DryRun(context.Background(), `SELECT Name FROM player_stats`))

	err := e.DryRun(context.Background(), `SELECT FROM WHERE`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explain")
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 50)
	cols, err := e.Describe(context.Background())
	require.NoError(t, err)

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Name", "No", "Pts", "Reb", "Opponent", "game_date"}, names)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, 50)
	assert.Equal(t, Stats{}, e.Snapshot())

	_, err := e.Execute(context.Background(), `SELECT Name FROM player_stats`)
	require.NoError(t, err)
	_, _ = e.Execute(context.Background(), `SELECT broken FROM player_stats`)

	snap := e.Snapshot()
	assert.Equal(t, int64(2), snap.Attempted)
	assert.Equal(t, int64(1), snap.Succeeded)
}
