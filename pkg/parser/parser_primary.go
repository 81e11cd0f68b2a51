package parser

import (
	"fmt"
	"strings"
)

// Primary expression parsing: literals, column refs, function calls.
//
// Grammar:
//
//	primary       → literal | typed_literal | column_ref | func_call
//	              | paren_expr | case_expr | cast_expr | exists_expr
//	literal       → NUMBER | STRING | TRUE | FALSE | NULL
//	typed_literal → (DATE | TIME | TIMESTAMP | INTERVAL) STRING
//	column_ref    → name ("." name)* ["." "*"]
//	name          → identifier | non-reserved keyword (END, FILTER, DESC, ...)
//	func_call     → identifier "(" [DISTINCT] [expr_list | "*"] ")" [FILTER "(" WHERE expr ")"]
//
// A func_call followed by OVER is rejected as unsupported.

// typedLiteralPrefixes are the type names that may prefix a string literal.
var typedLiteralPrefixes = map[string]bool{
	"date":        true,
	"time":        true,
	"timestamp":   true,
	"timestamptz": true,
	"interval":    true,
}

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "true"}

	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "false"}

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "null"}

	case TOKEN_CASE:
		return p.parseCaseExpr()

	case TOKEN_CAST:
		return p.parseCastExpr()

	case TOKEN_EXISTS:
		return p.parseExistsExpr(false)

	case TOKEN_IDENT:
		return p.parseIdentifierExpr()

	case TOKEN_LEFT, TOKEN_RIGHT:
		// LEFT(s, n) and RIGHT(s, n) are string functions
		if p.checkPeek(TOKEN_LPAREN) {
			name := p.token.Literal
			p.nextToken()
			return p.parseFuncCall(name)
		}

	case TOKEN_LPAREN:
		return p.parseParenExpr()
	}

	if isNonReserved(p.token.Type) {
		return p.parseIdentifierExpr()
	}

	p.addError(fmt.Sprintf("unexpected %s in expression", describe(p.token)))
	return nil
}

// parseIdentifierExpr parses an identifier which could be a column ref,
// a typed literal or a function call.
func (p *Parser) parseIdentifierExpr() Expr {
	name := p.token.Literal

	// DATE '2024-01-01'
	if p.checkPeek(TOKEN_STRING) && typedLiteralPrefixes[strings.ToLower(name)] {
		p.nextToken()
		lit := &Literal{Type: LiteralTyped, Value: p.token.Literal, TypeName: name}
		p.nextToken()
		return lit
	}

	p.nextToken()

	// Check if it's a function call
	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(name)
	}

	// Qualified column reference: table.column or schema.table.column
	if p.check(TOKEN_DOT) {
		return p.parseQualifiedColumnRef(name)
	}

	// Simple column reference
	return &ColumnRef{Parts: []string{name}}
}

// parseQualifiedColumnRef parses a qualified column reference or table.*.
func (p *Parser) parseQualifiedColumnRef(firstPart string) Expr {
	parts := []string{firstPart}

	for p.match(TOKEN_DOT) {
		// Check for table.*
		if p.check(TOKEN_STAR) {
			p.nextToken()
			return &StarExpr{Table: parts[len(parts)-1]}
		}

		if !p.checkName() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "identifier after ."))
			return nil
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	// schema.func(...)
	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(strings.Join(parts, "."))
	}

	return &ColumnRef{Parts: parts}
}

// parseFuncCall parses a function call. The current token is "(".
func (p *Parser) parseFuncCall(name string) Expr {
	fn := &FuncCall{Name: name}

	p.expect(TOKEN_LPAREN)

	// TRY_CAST(x AS type) and friends share CAST's argument shape
	if isCastLike(name) {
		return p.parseCastBody()
	}

	// EXTRACT(year FROM d), TRIM(BOTH ' ' FROM x), ...: keyword separated
	// arguments are kept as text only.
	if isSpecialForm(name) {
		p.skipBalanced(func() bool { return false })
		if p.failed() || !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return fn
	}

	// Handle COUNT(*) or other aggregate(*)
	if p.check(TOKEN_STAR) {
		fn.Star = true
		p.nextToken()
	} else if !p.check(TOKEN_RPAREN) {
		// Check for DISTINCT
		if p.match(TOKEN_DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(TOKEN_ALL)
		}

		fn.Args = p.parseExpressionList()
		if p.failed() {
			return nil
		}

		// Ordered aggregates: STRING_AGG(x, ',' ORDER BY y)
		if p.check(TOKEN_ORDER) {
			p.skipBalanced(func() bool { return false })
		}
	}

	if !p.expect(TOKEN_RPAREN) {
		return nil
	}

	// FILTER clause (for aggregates)
	if p.check(TOKEN_FILTER) && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		if !p.expect(TOKEN_LPAREN) || !p.expect(TOKEN_WHERE) {
			return nil
		}
		fn.Filter = p.parseExpression()
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
	}

	// OVER clause (window function)
	if p.check(TOKEN_OVER) {
		p.addErrorKind(ErrUnsupported, p.token.Pos, fmt.Sprintf(ErrUnsupportedWindow, name))
		return nil
	}
	return fn
}

// isCastLike reports whether name is a function written as f(expr AS type).
func isCastLike(name string) bool {
	switch strings.ToLower(name) {
	case "try_cast", "safe_cast":
		return true
	}
	return false
}

// isSpecialForm reports whether name is an ANSI function whose arguments are
// separated by keywords instead of commas.
func isSpecialForm(name string) bool {
	switch strings.ToLower(name) {
	case "extract", "substring", "trim", "position", "overlay":
		return true
	}
	return false
}
