package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_BasicSelect(t *testing.T) {
	t.Parallel()

	toks := Tokens(`SELECT Name, Pts FROM player_stats WHERE Pts > 20;`)

	var idents []string
	for _, tok := range toks {
		if tok.Type == TokenIdent {
			idents = append(idents, tok.Literal)
		}
	}
	assert.Equal(t, []string{"SELECT", "Name", "Pts", "FROM", "player_stats", "WHERE", "Pts"}, idents)

	last := toks[len(toks)-1]
	assert.Equal(t, TokenSymbol, last.Type)
	assert.Equal(t, ";", last.Literal)
}

func TestTokens_QuotedIdentifiersAndStrings(t *testing.T) {
	t.Parallel()

	toks := Tokens(`SELECT "TO", "3PTM" FROM player_stats WHERE Name = 'O''Neal, Pat'`)

	var quoted []string
	var strs []string
	for _, tok := range toks {
		switch tok.Type {
		case TokenQuotedIdent:
			quoted = append(quoted, tok.Literal)
		case TokenString:
			strs = append(strs, tok.Literal)
		}
	}
	assert.Equal(t, []string{"TO", "3PTM"}, quoted)
	assert.Equal(t, []string{"O'Neal, Pat"}, strs)
}

func TestTokens_Comments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"line comment", "SELECT 1 -- drop everything\n", "-- drop everything"},
		{"block comment", "SELECT /* sneaky */ 1", "/* sneaky */"},
		{"unterminated block", "SELECT 1 /* open", "/* open"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			toks := Tokens(tt.sql)
			var comments []string
			for _, tok := range toks {
				if tok.Type == TokenComment {
					comments = append(comments, tok.Literal)
				}
			}
			require.Len(t, comments, 1)
			assert.Equal(t, tt.want, comments[0])
		})
	}
}

func TestTokens_MinusIsNotComment(t *testing.T) {
	t.Parallel()

	toks := Tokens("SELECT Pts - Reb FROM player_stats")
	for _, tok := range toks {
		assert.NotEqual(t, TokenComment, tok.Type)
	}
}

func TestTokens_Operators(t *testing.T) {
	t.Parallel()

	toks := Tokens("a >= 1 AND b <> 2 AND c::int != 3 || d")

	var syms []string
	for _, tok := range toks {
		if tok.Type == TokenSymbol {
			syms = append(syms, tok.Literal)
		}
	}
	assert.Equal(t, []string{">=", "<>", "::", "!=", "||"}, syms)
}

func TestTokens_Numbers(t *testing.T) {
	t.Parallel()

	toks := Tokens("SELECT 42, 3.14, 1e5")
	var nums []string
	for _, tok := range toks {
		if tok.Type == TokenNumber {
			nums = append(nums, tok.Literal)
		}
	}
	assert.Equal(t, []string{"42", "3.14", "1e5"}, nums)
}

func TestIsKeyword(t *testing.T) {
	t.Parallel()

	assert.True(t, Token{Type: TokenIdent, Literal: "select"}.IsKeyword("SELECT"))
	assert.True(t, Token{Type: TokenIdent, Literal: "UNION"}.IsKeyword("union"))
	assert.False(t, Token{Type: TokenString, Literal: "select"}.IsKeyword("SELECT"))
}

func TestTokens_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Tokens(""))
	assert.Empty(t, Tokens("   \t\n"))
}
