// Package parser turns a single SQL SELECT statement into a Tree of
// statements suitable for column lineage.
//
// # Usage
//
//	tree, err := parser.Parse("SELECT a, SUM(b) AS total FROM t GROUP BY a")
//	if err != nil {
//	    // errors.Is(err, parser.ErrSyntax), parser.ErrUnsupported, ...
//	}
//
// # Grammar Overview
//
// The parser is a recursive descent parser for the SELECT subset needed to
// answer "where does this output column come from":
//
//	statement     → select_core [";"] EOF
//	select_core   → SELECT [DISTINCT|ALL] select_list FROM from_list
//	                {WHERE|GROUP BY|HAVING|QUALIFY|WINDOW|ORDER BY|LIMIT|OFFSET|FETCH <skipped>}
//
// Only the SELECT list and the FROM list are parsed structurally. Every
// other clause is skipped with paren-depth counting and recorded as a
// Clause span. See each file for the grammar of that section.
package parser

import (
	"fmt"
)

// DefaultMaxDepth is the SELECT nesting limit used when Options.MaxDepth is
// not set.
const DefaultMaxDepth = 32

// Options tune the parser.
type Options struct {
	// MaxDepth bounds how deeply SELECTs may nest, the outermost SELECT
	// counting as 1. Zero or negative means DefaultMaxDepth.
	MaxDepth int
}

// Parser parses SQL into a Tree.
type Parser struct {
	src     string
	lexer   *Lexer
	token   Token // current token
	peek    Token // lookahead token
	peek2   Token // second lookahead token
	lastEnd int   // end offset of the last consumed token
	errors  []error

	tree     *Tree
	current  int // index of the statement being parsed, -1 outside any
	depth    int
	maxDepth int
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string, opts Options) *Parser {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	p := &Parser{
		src:      sql,
		lexer:    NewLexer(sql),
		tree:     &Tree{Source: sql},
		current:  -1,
		maxDepth: opts.MaxDepth,
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses sql with default options.
func Parse(sql string) (*Tree, error) {
	return ParseWithOptions(sql, Options{})
}

// ParseWithOptions parses sql and returns the statement tree. The returned
// error is always a *Error.
func ParseWithOptions(sql string, opts Options) (*Tree, error) {
	return NewParser(sql, opts).Parse()
}

// Parse runs the parser. It stops at the first error.
func (p *Parser) Parse() (*Tree, error) {
	p.parseInput()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return p.tree, nil
}

// parseInput parses the whole input as exactly one statement.
func (p *Parser) parseInput() {
	if p.check(TOKEN_EOF) {
		p.addErrorKind(ErrEmptyInput, Position{}, "no SQL statement found")
		return
	}
	if !p.scanTokens() {
		return
	}

	switch {
	case p.check(TOKEN_WITH):
		p.addErrorKind(ErrUnsupported, p.token.Pos, ErrUnsupportedCTE)
		return
	case !p.check(TOKEN_SELECT):
		p.addError(fmt.Sprintf(ErrNotSelect, describe(p.token)))
		return
	}

	p.parseSelect(-1, -1)
	if p.failed() {
		return
	}

	if p.match(TOKEN_SEMICOLON) {
		for p.match(TOKEN_SEMICOLON) {
		}
		if !p.check(TOKEN_EOF) {
			p.addErrorKind(ErrUnsupported, p.token.Pos, ErrMultipleStatements)
		}
		return
	}
	if !p.check(TOKEN_EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "end of statement"))
	}
}

// scanTokens checks the whole token stream for illegal characters,
// unterminated literals and unbalanced parentheses before any grammar rule
// runs, so those report as syntax errors no matter where they occur.
func (p *Parser) scanTokens() bool {
	var open []Position
	for _, tok := range Tokenize(p.src) {
		switch tok.Type {
		case TOKEN_ILLEGAL:
			msg := tok.Literal
			if msg != ErrUnterminatedString && msg != ErrUnterminatedIdent {
				msg = fmt.Sprintf("illegal character %q", tok.Literal)
			}
			p.addErrorKind(ErrSyntax, tok.Pos, msg)
			return false
		case TOKEN_LPAREN:
			open = append(open, tok.Pos)
		case TOKEN_RPAREN:
			if len(open) == 0 {
				p.addErrorKind(ErrSyntax, tok.Pos, ErrUnbalancedParens)
				return false
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		p.addErrorKind(ErrSyntax, open[len(open)-1], ErrUnbalancedParens)
		return false
	}
	return true
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.token.End > 0 {
		p.lastEnd = p.token.End
	}
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// failed reports whether an error has been recorded.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// addError adds a syntax error at the current token.
func (p *Parser) addError(msg string) {
	p.addErrorKind(ErrSyntax, p.token.Pos, msg)
}

// addErrorKind adds an error of the given kind.
func (p *Parser) addErrorKind(kind error, pos Position, msg string) {
	p.errors = append(p.errors, &Error{
		Kind:    kind,
		Pos:     pos,
		Message: msg,
	})
}

// describe renders a token for error messages.
func describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_IDENT:
		return fmt.Sprintf("identifier %q", tok.Literal)
	case TOKEN_STRING:
		return fmt.Sprintf("string '%s'", tok.Literal)
	case TOKEN_NUMBER:
		return fmt.Sprintf("number %s", tok.Literal)
	default:
		return tok.Type.String()
	}
}

// ---------- Keyword Helpers ----------

// isJoinStart returns true if the current token begins a JOIN.
// LEFT and RIGHT followed by "(" are function calls, not joins.
func (p *Parser) isJoinStart() bool {
	switch p.token.Type {
	case TOKEN_JOIN, TOKEN_INNER, TOKEN_FULL, TOKEN_CROSS, TOKEN_NATURAL:
		return true
	case TOKEN_LEFT, TOKEN_RIGHT:
		return !p.checkPeek(TOKEN_LPAREN)
	}
	return false
}

// isSetOp returns true if the current token is UNION, INTERSECT or EXCEPT.
func (p *Parser) isSetOp() bool {
	switch p.token.Type {
	case TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT:
		return true
	}
	return false
}

// isNonReserved reports whether t is a keyword that may also be used as a
// column name or alias.
func isNonReserved(t TokenType) bool {
	switch t {
	case TOKEN_END, TOKEN_FILTER, TOKEN_WINDOW, TOKEN_OFFSET, TOKEN_FETCH,
		TOKEN_QUALIFY, TOKEN_FULL, TOKEN_ASC, TOKEN_DESC:
		return true
	}
	return false
}

// checkName reports whether the current token can be used as a name: an
// identifier or a non-reserved keyword.
func (p *Parser) checkName() bool {
	return p.check(TOKEN_IDENT) || isNonReserved(p.token.Type)
}

// checkImplicitAlias reports whether the current token is an alias written
// without AS. A non-reserved keyword only counts when the item ends right
// after it; FULL is never an alias in FROM since it may start a join.
func (p *Parser) checkImplicitAlias(inFrom bool) bool {
	if p.check(TOKEN_IDENT) {
		return true
	}
	if !isNonReserved(p.token.Type) || (inFrom && p.check(TOKEN_FULL)) {
		return false
	}
	switch p.peek.Type {
	case TOKEN_COMMA, TOKEN_FROM, TOKEN_RPAREN, TOKEN_SEMICOLON, TOKEN_EOF,
		TOKEN_WHERE, TOKEN_GROUP, TOKEN_HAVING, TOKEN_ORDER, TOKEN_LIMIT,
		TOKEN_ON, TOKEN_USING, TOKEN_JOIN, TOKEN_INNER, TOKEN_LEFT, TOKEN_RIGHT,
		TOKEN_CROSS, TOKEN_NATURAL:
		return true
	}
	return false
}

// clauseKinds maps the keyword that opens a trailing clause to its kind.
var clauseKinds = map[TokenType]ClauseKind{
	TOKEN_WHERE:   ClauseWhere,
	TOKEN_GROUP:   ClauseGroupBy,
	TOKEN_HAVING:  ClauseHaving,
	TOKEN_WINDOW:  ClauseWindow,
	TOKEN_QUALIFY: ClauseQualify,
	TOKEN_ORDER:   ClauseOrderBy,
	TOKEN_LIMIT:   ClauseLimit,
	TOKEN_OFFSET:  ClauseOffset,
	TOKEN_FETCH:   ClauseFetch,
}

// isClauseKeyword returns true if the current token starts a trailing clause.
func (p *Parser) isClauseKeyword() bool {
	_, ok := clauseKinds[p.token.Type]
	return ok
}

// skipBalanced consumes tokens until stop reports true at paren depth zero,
// a closing paren that belongs to the caller is reached, or input ends.
// Window functions and set operations are rejected on the way.
func (p *Parser) skipBalanced(stop func() bool) {
	depth := 0
	for !p.check(TOKEN_EOF) && !p.failed() {
		if depth == 0 && (stop() || p.check(TOKEN_SEMICOLON)) {
			return
		}
		switch p.token.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth == 0 {
				return
			}
			depth--
		case TOKEN_OVER:
			p.addErrorKind(ErrUnsupported, p.token.Pos, ErrUnsupportedOver)
			return
		case TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT:
			p.addErrorKind(ErrUnsupported, p.token.Pos, fmt.Sprintf(ErrUnsupportedSetOp, p.token.Type))
			return
		}
		p.nextToken()
	}
}
