// Package token defines the lexical tokens of the SELECT subset understood by
// the collineage parser.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello'

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	DCOLON    // ::
	SEMICOLON // ;

	// Keywords (alphabetical)
	ALL
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CROSS
	DESC
	DISTINCT
	ELSE
	END
	EXCEPT
	EXISTS
	FALSE
	FETCH
	FILTER
	FROM
	FULL
	GROUP
	HAVING
	ILIKE
	IN
	INNER
	INTERSECT
	IS
	JOIN
	LATERAL
	LEFT
	LIKE
	LIMIT
	NATURAL
	NOT
	NULL
	OFFSET
	ON
	OR
	ORDER
	OUTER
	OVER
	QUALIFY
	RIGHT
	SELECT
	THEN
	TRUE
	UNION
	USING
	WHEN
	WHERE
	WINDOW
	WITH
)

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string   // unquoted/unescaped value
	Pos     Position // start of the token
	End     int      // byte offset just past the token
}

// Span returns the byte range the token occupies in the source.
func (t Token) Span() Span {
	return Span{Start: t.Pos.Offset, End: t.End}
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// IsKeyword reports whether the token type is a reserved keyword.
func (t TokenType) IsKeyword() bool {
	return t >= ALL && t <= WITH
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	DCOLON:    "::",
	SEMICOLON: ";",

	ALL:       "ALL",
	AND:       "AND",
	AS:        "AS",
	ASC:       "ASC",
	BETWEEN:   "BETWEEN",
	BY:        "BY",
	CASE:      "CASE",
	CAST:      "CAST",
	CROSS:     "CROSS",
	DESC:      "DESC",
	DISTINCT:  "DISTINCT",
	ELSE:      "ELSE",
	END:       "END",
	EXCEPT:    "EXCEPT",
	EXISTS:    "EXISTS",
	FALSE:     "FALSE",
	FETCH:     "FETCH",
	FILTER:    "FILTER",
	FROM:      "FROM",
	FULL:      "FULL",
	GROUP:     "GROUP",
	HAVING:    "HAVING",
	ILIKE:     "ILIKE",
	IN:        "IN",
	INNER:     "INNER",
	INTERSECT: "INTERSECT",
	IS:        "IS",
	JOIN:      "JOIN",
	LATERAL:   "LATERAL",
	LEFT:      "LEFT",
	LIKE:      "LIKE",
	LIMIT:     "LIMIT",
	NATURAL:   "NATURAL",
	NOT:       "NOT",
	NULL:      "NULL",
	OFFSET:    "OFFSET",
	ON:        "ON",
	OR:        "OR",
	ORDER:     "ORDER",
	OUTER:     "OUTER",
	OVER:      "OVER",
	QUALIFY:   "QUALIFY",
	RIGHT:     "RIGHT",
	SELECT:    "SELECT",
	THEN:      "THEN",
	TRUE:      "TRUE",
	UNION:     "UNION",
	USING:     "USING",
	WHEN:      "WHEN",
	WHERE:     "WHERE",
	WINDOW:    "WINDOW",
	WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       ALL,
	"and":       AND,
	"as":        AS,
	"asc":       ASC,
	"between":   BETWEEN,
	"by":        BY,
	"case":      CASE,
	"cast":      CAST,
	"cross":     CROSS,
	"desc":      DESC,
	"distinct":  DISTINCT,
	"else":      ELSE,
	"end":       END,
	"except":    EXCEPT,
	"exists":    EXISTS,
	"false":     FALSE,
	"fetch":     FETCH,
	"filter":    FILTER,
	"from":      FROM,
	"full":      FULL,
	"group":     GROUP,
	"having":    HAVING,
	"ilike":     ILIKE,
	"in":        IN,
	"inner":     INNER,
	"intersect": INTERSECT,
	"is":        IS,
	"join":      JOIN,
	"lateral":   LATERAL,
	"left":      LEFT,
	"like":      LIKE,
	"limit":     LIMIT,
	"natural":   NATURAL,
	"not":       NOT,
	"null":      NULL,
	"offset":    OFFSET,
	"on":        ON,
	"or":        OR,
	"order":     ORDER,
	"outer":     OUTER,
	"over":      OVER,
	"qualify":   QUALIFY,
	"right":     RIGHT,
	"select":    SELECT,
	"then":      THEN,
	"true":      TRUE,
	"union":     UNION,
	"using":     USING,
	"when":      WHEN,
	"where":     WHERE,
	"window":    WINDOW,
	"with":      WITH,
}

// LookupIdent returns the keyword token type for a lowercase identifier,
// or IDENT if it is not a keyword.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
