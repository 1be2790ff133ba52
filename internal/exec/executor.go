// Package exec runs gate-approved SQL against the statistics store with a
// bounded timeout and row cap, and tracks running counters for the stats
// endpoint. Callers must validate queries first; Execute does not re-check.
package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"courtql/internal/domain"
)

// Result holds the structured output of a query: up to RowCap rows plus
// the total row count before capping.
type Result struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
}

// Empty returns true when the query matched no rows.
func (r *Result) Empty() bool { return r.RowCount == 0 }

// ColumnInfo is one column of the statistics table, from PRAGMA table_info.
type ColumnInfo struct {
	Name string
	Type string
}

// Stats is a snapshot of the running counters, reset only at process start.
type Stats struct {
	Attempted    int64
	Succeeded    int64
	AvgLatencyMs float64
}

// Executor executes read-only queries. Each call checks out its own
// connection from the read pool, so concurrent requests never share
// statement state.
type Executor struct {
	db      *sql.DB
	table   string
	timeout time.Duration
	rowCap  int
	logger  *slog.Logger

	attempted      atomic.Int64
	succeeded      atomic.Int64
	totalLatencyMs atomic.Int64
}

// New creates an Executor over the read pool.
func New(db *sql.DB, table string, timeout time.Duration, rowCap int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		db:      db,
		table:   table,
		timeout: timeout,
		rowCap:  rowCap,
		logger:  logger.With("component", "executor"),
	}
}

// Execute runs a validated query and returns capped rows plus the total
// row count. Backend failures and timeouts come back as typed
// *domain.ExecutionError values, never as panics or raw driver errors.
func (e *Executor) Execute(ctx context.Context, sqlText string) (*Result, error) {
	e.attempted.Add(1)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, e.execError(ctx, "acquire connection", err)
	}
	defer conn.Close() //nolint:errcheck

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, e.execError(ctx, "query", err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := e.scanRows(rows)
	if err != nil {
		return nil, e.execError(ctx, "scan", err)
	}

	elapsed := time.Since(start)
	e.succeeded.Add(1)
	e.totalLatencyMs.Add(elapsed.Milliseconds())
	e.logger.Debug("query executed", "rows", result.RowCount, "elapsed", elapsed)

	return result, nil
}

// DryRun syntax-checks a query via EXPLAIN without touching table data.
// The returned error carries the planner's message for prompt feedback.
func (e *Executor) DryRun(ctx context.Context, sqlText string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, "EXPLAIN "+sqlText)
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	return rows.Close()
}

// Describe introspects the statistics table via PRAGMA table_info.
func (e *Executor) Describe(ctx context.Context) ([]ColumnInfo, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", e.table))
	if err != nil {
		return nil, fmt.Errorf("table_info: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		cols = append(cols, ColumnInfo{Name: name, Type: ctype})
	}
	return cols, rows.Err()
}

// Snapshot returns the current counters.
func (e *Executor) Snapshot() Stats {
	attempted := e.attempted.Load()
	succeeded := e.succeeded.Load()
	var avg float64
	if succeeded > 0 {
		avg = float64(e.totalLatencyMs.Load()) / float64(succeeded)
	}
	return Stats{Attempted: attempted, Succeeded: succeeded, AvgLatencyMs: avg}
}

// scanRows reads all rows, keeping at most rowCap but counting every one.
// []byte values become strings so results serialize cleanly.
func (e *Executor) scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		result.RowCount++
		if len(result.Rows) >= e.rowCap {
			continue
		}

		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

// execError wraps a backend failure as a typed execution error, marking
// deadline expiry as a timeout.
func (e *Executor) execError(ctx context.Context, stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("query timed out", "stage", stage)
		return domain.ErrExecutionTimeout("%s: query exceeded %s", stage, e.timeout)
	}
	e.logger.Warn("query failed", "stage", stage, "error", err)
	return domain.ErrExecution("%s: %v", stage, err)
}
