// Package safety implements the pre-execution gate for generated SQL.
// Check is a pure function over the token stream: no query reaches the
// executor without passing it.
package safety

import (
	"strings"

	"courtql/internal/domain"
	"courtql/internal/sqlscan"
)

// Statement verbs that mutate state or escape the read-only surface.
// Rejected wherever they appear as keywords, not just in first position,
// so stacked statements and sneaky subclauses fail the same way.
var forbiddenKeywords = map[string]struct{}{
	"INSERT":  {},
	"UPDATE":  {},
	"DELETE":  {},
	"DROP":    {},
	"CREATE":  {},
	"ALTER":   {},
	"REPLACE": {},
	"ATTACH":  {},
	"DETACH":  {},
	"PRAGMA":  {},
	"VACUUM":  {},
	"REINDEX": {},
}

// Check validates a statement against the permitted table. It returns nil
// when the statement is accepted, or a *domain.SafetyError naming the first
// violated rule. Order of checks: non-empty, no comments, single statement,
// SELECT-only, permitted table only, no cross-relation UNION.
func Check(sql, table string) error {
	if strings.TrimSpace(sql) == "" {
		return domain.ErrSafety("empty statement")
	}

	toks := sqlscan.Tokens(sql)
	if len(toks) == 0 {
		return domain.ErrSafety("empty statement")
	}

	for _, tok := range toks {
		if tok.Type == sqlscan.TokenComment {
			return domain.ErrSafety("comment markers are not allowed")
		}
		if tok.Type == sqlscan.TokenIllegal {
			return domain.ErrSafety("unrecognized input %q", tok.Literal)
		}
	}

	// A semicolon may only appear as the final token.
	for i, tok := range toks {
		if tok.Type == sqlscan.TokenSymbol && tok.Literal == ";" && i != len(toks)-1 {
			return domain.ErrSafety("multiple statements are not allowed")
		}
	}

	first := toks[0]
	switch {
	case first.IsKeyword("SELECT"):
	case first.IsKeyword("WITH"):
		// CTEs are fine as long as the statement stays a pure SELECT;
		// the keyword scan below rejects mutating bodies.
	default:
		return domain.ErrSafety("only SELECT statements are allowed, got %q", first.Literal)
	}

	for _, tok := range toks {
		if tok.Type != sqlscan.TokenIdent {
			continue
		}
		if _, bad := forbiddenKeywords[strings.ToUpper(tok.Literal)]; bad {
			return domain.ErrSafety("statement contains forbidden keyword %q", strings.ToUpper(tok.Literal))
		}
	}

	unionAt := -1
	for i, tok := range toks {
		if tok.IsKeyword("UNION") {
			unionAt = i
			break
		}
	}

	for _, ref := range relationRefs(toks) {
		if strings.EqualFold(ref.name, table) {
			continue
		}
		if unionAt >= 0 && ref.pos > unionAt {
			return domain.ErrSafety("UNION targeting relation %q is not allowed", ref.name)
		}
		return domain.ErrSafety("relation %q is not permitted, only %q may be queried", ref.name, table)
	}

	return nil
}

// relationRef is a table name referenced in a FROM or JOIN clause, with the
// token index where it appeared.
type relationRef struct {
	name string
	pos  int
}

// relationRefs collects every relation referenced after FROM or JOIN,
// following comma-separated FROM lists. Parenthesized subqueries are
// skipped here; their own FROM clauses are visited by the outer loop.
// CTE names are not excluded, which makes the gate stricter, not weaker:
// a WITH clause naming anything other than the permitted table is rejected.
func relationRefs(toks []sqlscan.Token) []relationRef {
	var refs []relationRef
	for i := 0; i < len(toks); i++ {
		if !toks[i].IsKeyword("FROM") && !toks[i].IsKeyword("JOIN") {
			continue
		}
		j := i + 1
		for j < len(toks) {
			// Subquery or expression source: its FROM is handled separately.
			if toks[j].Type == sqlscan.TokenSymbol && toks[j].Literal == "(" {
				break
			}
			if toks[j].Type == sqlscan.TokenIdent || toks[j].Type == sqlscan.TokenQuotedIdent {
				refs = append(refs, relationRef{name: toks[j].Literal, pos: j})
			} else {
				break
			}
			// Step over an optional alias (with or without AS), then keep
			// consuming the FROM list across commas.
			j++
			if j < len(toks) && toks[j].IsKeyword("AS") {
				j++
			}
			if j < len(toks) && toks[j].Type == sqlscan.TokenIdent && !isClauseKeyword(toks[j].Literal) {
				j++
			}
			if j < len(toks) && toks[j].Type == sqlscan.TokenSymbol && toks[j].Literal == "," {
				j++
				continue
			}
			break
		}
	}
	return refs
}

// isClauseKeyword reports whether an identifier starts a new clause rather
// than naming a table alias.
func isClauseKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "WHERE", "GROUP", "ORDER", "LIMIT", "HAVING", "UNION", "JOIN", "INNER",
		"LEFT", "RIGHT", "OUTER", "CROSS", "ON", "SELECT", "AS", "EXCEPT", "INTERSECT":
		return true
	}
	return false
}
