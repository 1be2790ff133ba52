// Package sqlscan tokenizes SQLite statements for structural inspection.
// Unlike a full parser it only distinguishes the token classes the safety
// gate and rewriter care about; comments are surfaced as tokens rather
// than skipped so injection markers stay visible.
package sqlscan

import (
	"strings"
	"unicode"
)

// TokenType classifies a scanned token.
type TokenType int

const (
	// TokenEOF marks the end of input.
	TokenEOF TokenType = iota
	// TokenIdent is an unquoted identifier or keyword.
	TokenIdent
	// TokenQuotedIdent is a double-quoted identifier, unescaped.
	TokenQuotedIdent
	// TokenString is a single-quoted string literal, unescaped.
	TokenString
	// TokenNumber is a numeric literal.
	TokenNumber
	// TokenComment is a line (--) or block (/* */) comment.
	TokenComment
	// TokenSymbol is an operator or punctuation, including ";".
	TokenSymbol
	// TokenIllegal is a byte the scanner does not recognize.
	TokenIllegal
)

// Token is one lexical unit of a statement.
type Token struct {
	Type    TokenType
	Literal string
}

// IsKeyword reports whether an ident token matches the given keyword,
// case-insensitively.
func (t Token) IsKeyword(kw string) bool {
	return t.Type == TokenIdent && strings.EqualFold(t.Literal, kw)
}

// Lexer scans SQL input byte by byte.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// New creates a Lexer for the given input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokens scans the whole input and returns every token before EOF.
func Tokens(input string) []Token {
	l := New(input)
	var out []Token
	for {
		tok := l.Next()
		if tok.Type == TokenEOF {
			return out
		}
		out = append(out, tok)
	}
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// Next returns the next token from the input.
func (l *Lexer) Next() Token {
	l.skipWhitespace()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF}
	case l.ch == '-' && l.peekChar() == '-':
		return Token{Type: TokenComment, Literal: l.readLineComment()}
	case l.ch == '/' && l.peekChar() == '*':
		return Token{Type: TokenComment, Literal: l.readBlockComment()}
	case l.ch == '\'':
		return Token{Type: TokenString, Literal: l.readString()}
	case l.ch == '"':
		return Token{Type: TokenQuotedIdent, Literal: l.readQuotedIdentifier()}
	case isLetter(l.ch) || l.ch == '_':
		return Token{Type: TokenIdent, Literal: l.readIdentifier()}
	case isDigit(l.ch):
		return Token{Type: TokenNumber, Literal: l.readNumber()}
	}

	// Multi-byte operators the rewriter inspects.
	if l.ch == ':' && l.peekChar() == ':' {
		l.readChar()
		l.readChar()
		return Token{Type: TokenSymbol, Literal: "::"}
	}
	if (l.ch == '<' && (l.peekChar() == '=' || l.peekChar() == '>')) ||
		(l.ch == '>' && l.peekChar() == '=') ||
		(l.ch == '!' && l.peekChar() == '=') ||
		(l.ch == '|' && l.peekChar() == '|') {
		first := l.ch
		l.readChar()
		lit := string(first) + string(l.ch)
		l.readChar()
		return Token{Type: TokenSymbol, Literal: lit}
	}

	switch l.ch {
	case '+', '-', '*', '/', '%', '=', '<', '>', '.', ',', ';', '(', ')', '[', ']', ':', '&', '|', '^', '~', '?':
		lit := string(l.ch)
		l.readChar()
		return Token{Type: TokenSymbol, Literal: lit}
	}

	lit := string(l.ch)
	l.readChar()
	return Token{Type: TokenIllegal, Literal: lit}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readLineComment consumes -- to end of line, marker included.
func (l *Lexer) readLineComment() string {
	start := l.pos
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readBlockComment consumes /* ... */, delimiters included. An unterminated
// comment runs to EOF.
func (l *Lexer) readBlockComment() string {
	start := l.pos
	l.readChar() // skip /
	l.readChar() // skip *
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // skip *
			l.readChar() // skip /
			break
		}
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readString reads a single-quoted string literal.
// Handles '' escape for embedded quotes.
func (l *Lexer) readString() string {
	l.readChar() // skip opening quote
	var result strings.Builder
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String()
}

// readQuotedIdentifier reads a double-quoted identifier.
// Handles "" escape for embedded double quotes.
func (l *Lexer) readQuotedIdentifier() string {
	l.readChar() // skip opening quote
	var result strings.Builder
	for l.ch != 0 {
		if l.ch == '"' {
			if l.peekChar() == '"' {
				result.WriteByte('"')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String()
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
