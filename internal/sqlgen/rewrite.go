// Package sqlgen synthesizes SQLite queries from questions and resolved
// entities: term mapping, prompting, fence stripping, a deterministic
// dialect-compatibility rewrite, and dry-run validation with bounded
// regeneration.
package sqlgen

import (
	"regexp"
	"strings"
)

// Model output drifts toward PostgreSQL; these rewrites translate the
// recurring offenders into SQLite equivalents before validation.
var (
	extractYearRe  = regexp.MustCompile(`(?i)EXTRACT\s*\(\s*YEAR\s+FROM\s+([^)]+)\)`)
	extractMonthRe = regexp.MustCompile(`(?i)EXTRACT\s*\(\s*MONTH\s+FROM\s+([^)]+)\)`)
	intervalDayRe  = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_.]*)\s*\+\s*INTERVAL\s+'(\d+)'\s*DAY`)
	pgCastRe       = regexp.MustCompile(`(?i)::(text|integer|float|date|real)`)
	ilikeRe        = regexp.MustCompile(`(?i)\bILIKE\b`)
	stddevRe       = regexp.MustCompile(`(?i)\bSTDDEV\s*\(\s*([^)]+?)\s*\)`)
	threeColRe     = regexp.MustCompile(`\b(3PTM|3PTA)\b`)
	noColRe        = regexp.MustCompile(`\bNo(\s*(?:=|>|<|IN\b))`)
	toColRe        = regexp.MustCompile(`(?i)\bTO\b`)
	orDrColRe      = regexp.MustCompile(`\bOR-DR\b`)
	doubleQuoteRe  = regexp.MustCompile(`""([^"]+)""`)
	emptyWhereRe   = regexp.MustCompile(`(?i)WHERE\s*\)`)
	whereAndRe     = regexp.MustCompile(`(?i)WHERE\s*AND\b`)
	trailingClose  = regexp.MustCompile(`\)\s*$`)
	selectRe       = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// toStopWords are contexts where a bare TO is the SQL keyword or part of
// one, not the turnovers column.
var toStopWords = []string{"(", ",", "FROM", "WHERE", "ORDER", "GROUP"}

// Rewrite applies the dialect-compatibility pass to generated SQL:
// PostgreSQL constructs become SQLite equivalents, special column names
// get quoted, and common structural slips are repaired.
func Rewrite(sql string) string {
	if sql == "" {
		return sql
	}

	sql = extractYearRe.ReplaceAllString(sql, `strftime('%Y', $1)`)
	sql = extractMonthRe.ReplaceAllString(sql, `strftime('%m', $1)`)
	sql = intervalDayRe.ReplaceAllString(sql, `date($1, '+$2 days')`)
	sql = pgCastRe.ReplaceAllString(sql, "")
	sql = ilikeRe.ReplaceAllString(sql, "LIKE")
	sql = stddevRe.ReplaceAllString(sql, `SQRT(AVG(($1 - sub_avg) * ($1 - sub_avg)))`)

	sql = threeColRe.ReplaceAllString(sql, `"$1"`)
	sql = noColRe.ReplaceAllString(sql, `"No"$1`)
	sql = orDrColRe.ReplaceAllString(sql, `"OR-DR"`)
	sql = quoteTurnoverColumn(sql)

	// Collapse doubled quotes introduced when a column was already quoted.
	sql = doubleQuoteRe.ReplaceAllString(sql, `"$1"`)

	sql = emptyWhereRe.ReplaceAllString(sql, ")")
	sql = whereAndRe.ReplaceAllString(sql, "WHERE")
	sql = balanceParens(sql)

	return sql
}

// quoteTurnoverColumn quotes bare TO identifiers unless the following text
// shows a keyword context (GROUP BY x TO ..., function call, list position).
func quoteTurnoverColumn(sql string) string {
	locs := toColRe.FindAllStringIndex(sql, -1)
	if locs == nil {
		return sql
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(sql[prev:loc[0]])
		rest := strings.TrimLeft(sql[loc[1]:], " \t\n")
		if followsStopWord(rest) {
			b.WriteString(sql[loc[0]:loc[1]])
		} else {
			b.WriteString(`"TO"`)
		}
		prev = loc[1]
	}
	b.WriteString(sql[prev:])
	return b.String()
}

func followsStopWord(rest string) bool {
	upper := strings.ToUpper(rest)
	for _, stop := range toStopWords {
		if strings.HasPrefix(upper, stop) {
			return true
		}
	}
	return false
}

// balanceParens appends missing closers or trims dangling ones. Counting
// is textual, matching the generation failure mode it repairs: a model
// that truncated the tail of an otherwise well-formed query.
func balanceParens(sql string) string {
	open := strings.Count(sql, "(")
	closed := strings.Count(sql, ")")
	switch {
	case open > closed:
		return sql + strings.Repeat(")", open-closed)
	case closed > open:
		for closed > open && trailingClose.MatchString(sql) {
			sql = trailingClose.ReplaceAllString(sql, "")
			closed--
		}
	}
	return sql
}

// Forbidden dialect features checked before the dry-run, with the reasons
// fed back into the regeneration prompt.
var forbiddenFeatures = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)\bEXTRACT\b`), "EXTRACT not supported in SQLite"},
	{regexp.MustCompile(`(?i)\bINTERVAL\b`), "INTERVAL not supported in SQLite"},
	{regexp.MustCompile(`(?i)\bSTDDEV\b`), "STDDEV not supported in SQLite"},
	{regexp.MustCompile(`(?i)\bILIKE\b`), "ILIKE not supported in SQLite"},
	{regexp.MustCompile(`::`), "PostgreSQL casting (::) not supported"},
	{regexp.MustCompile(`(?is)GROUP\s+BY.*?AVG\s*\(`), "aggregate functions not allowed in GROUP BY"},
	{regexp.MustCompile(`(?is)WHERE.*?WITH\s+\w+\s+AS\s*\(`), "CTE cannot be used inside WHERE clause"},
}

// Validate checks rewritten SQL for leftover incompatible features and the
// required shape. It returns "" when the query may proceed to the dry-run.
func Validate(sql, table string) string {
	if strings.TrimSpace(sql) == "" {
		return "empty SQL query"
	}
	for _, f := range forbiddenFeatures {
		if f.re.MatchString(sql) {
			return f.reason
		}
	}
	if !selectRe.MatchString(sql) {
		return "query must contain SELECT"
	}
	if !strings.Contains(sql, table) {
		return "query must reference table " + table
	}
	return ""
}
