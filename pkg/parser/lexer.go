package parser

import (
	"strings"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}

	// The previous character decides whether we moved onto a new line.
	if l.pos < len(l.input) && l.readPos > 0 && l.input[l.pos] == '\n' {
		l.line++
		l.col = 0
	}

	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// atEOF reports whether the lexer consumed the whole input.
func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// currentPos returns the current position.
func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := Token{Pos: pos}

	if l.atEOF() {
		tok.Type = TOKEN_EOF
		tok.End = len(l.input)
		return tok
	}

	switch l.ch {
	case '+':
		tok = l.single(TOKEN_PLUS, pos)
	case '-':
		tok = l.single(TOKEN_MINUS, pos)
	case '*':
		tok = l.single(TOKEN_STAR, pos)
	case '/':
		tok = l.single(TOKEN_SLASH, pos)
	case '%':
		tok = l.single(TOKEN_PERCENT, pos)
	case '=':
		tok = l.single(TOKEN_EQ, pos)
	case '<':
		switch l.peekChar() {
		case '=':
			tok = l.double(TOKEN_LE, pos)
		case '>':
			tok = l.double(TOKEN_NE, pos)
		default:
			tok = l.single(TOKEN_LT, pos)
		}
	case '>':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_GE, pos)
		} else {
			tok = l.single(TOKEN_GT, pos)
		}
	case '!':
		if l.peekChar() == '=' {
			tok = l.double(TOKEN_NE, pos)
		} else {
			tok = l.single(TOKEN_ILLEGAL, pos)
		}
	case '|':
		if l.peekChar() == '|' {
			tok = l.double(TOKEN_DPIPE, pos)
		} else {
			tok = l.single(TOKEN_ILLEGAL, pos)
		}
	case ':':
		if l.peekChar() == ':' {
			tok = l.double(TOKEN_DCOLON, pos)
		} else {
			tok = l.single(TOKEN_ILLEGAL, pos)
		}
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type = TOKEN_NUMBER
			tok.Literal = l.readNumber()
			tok.End = l.pos
			return tok
		}
		tok = l.single(TOKEN_DOT, pos)
	case ',':
		tok = l.single(TOKEN_COMMA, pos)
	case ';':
		tok = l.single(TOKEN_SEMICOLON, pos)
	case '(':
		tok = l.single(TOKEN_LPAREN, pos)
	case ')':
		tok = l.single(TOKEN_RPAREN, pos)
	case '[':
		tok = l.single(TOKEN_LBRACKET, pos)
	case ']':
		tok = l.single(TOKEN_RBRACKET, pos)
	case '\'':
		lit, ok := l.readQuoted('\'')
		tok.Type, tok.Literal = TOKEN_STRING, lit
		if !ok {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, ErrUnterminatedString
		}
		tok.End = l.pos
		return tok
	case '"', '`':
		// Quoted identifier (ANSI double quotes, MySQL backticks)
		lit, ok := l.readQuoted(l.ch)
		tok.Type, tok.Literal = TOKEN_IDENT, lit
		if !ok {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, ErrUnterminatedIdent
		}
		tok.End = l.pos
		return tok
	default:
		switch {
		case isIdentStart(l.ch):
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(strings.ToLower(tok.Literal))
			tok.End = l.pos
			return tok
		case isDigit(l.ch):
			tok.Type = TOKEN_NUMBER
			tok.Literal = l.readNumber()
			tok.End = l.pos
			return tok
		default:
			tok = l.single(TOKEN_ILLEGAL, pos)
		}
	}

	return tok
}

// single emits a one-byte token and advances past it.
func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.pos}
}

// double emits a two-byte token and advances past it.
func (l *Lexer) double(t TokenType, pos Position) Token {
	lit := l.input[l.pos : l.pos+2]
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.pos}
}

// skipWhitespaceAndComments skips whitespace and comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}

		// Skip line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			l.skipLineComment()
			continue
		}

		// Skip block comment (/* ... */)
		if l.ch == '/' && l.peekChar() == '*' {
			l.skipBlockComment()
			continue
		}

		break
	}
}

// skipLineComment skips a line comment.
func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && !l.atEOF() {
		l.readChar()
	}
}

// skipBlockComment skips a block comment. An unterminated comment runs to EOF.
func (l *Lexer) skipBlockComment() {
	l.readChar() // skip '/'
	l.readChar() // skip '*'

	for !l.atEOF() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // skip '*'
			l.readChar() // skip '/'
			return
		}
		l.readChar()
	}
}

// readQuoted reads a literal enclosed in quote. A doubled quote is an escaped
// quote: 'it''s' -> it's, "col""name" -> col"name.
// The second result is false if the input ended before the closing quote.
func (l *Lexer) readQuoted(quote byte) (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.atEOF() {
			return result.String(), false
		}
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) || l.ch == '$' {
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
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Exponent (1e10, 1E-5)
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar() // skip 'e' or 'E'
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	return l.input[start:l.pos]
}

// isIdentStart returns true if ch can start an unquoted identifier.
// Bytes of multi-byte UTF-8 sequences are accepted so that non-ASCII
// identifiers survive untouched.
func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with TOKEN_EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	return tokens
}
