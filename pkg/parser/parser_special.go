package parser

import (
	"fmt"
	"strings"
)

// Special expression parsing: CASE, CAST, EXISTS, parenthesized expressions, subqueries.
//
// Grammar:
//
//	case_expr     → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	cast_expr     → CAST "(" expr AS type_name ")"
//	exists_expr   → [NOT] EXISTS "(" select_core ")"
//	paren_expr    → "(" expr ("," expr)* ")" | "(" select_core ")"
//	type_name     → identifier {identifier} ["(" number ["," number] ")"] {"[" "]"}

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	caseExpr := &CaseExpr{}

	// Simple CASE: CASE expr WHEN ...
	if !p.check(TOKEN_WHEN) {
		caseExpr.Operand = p.parseExpression()
	}

	// WHEN clauses
	for !p.failed() && p.match(TOKEN_WHEN) {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		if !p.expect(TOKEN_THEN) {
			return nil
		}
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}
	if p.failed() {
		return nil
	}
	if len(caseExpr.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "WHEN"))
		return nil
	}

	// ELSE clause
	if p.match(TOKEN_ELSE) {
		caseExpr.Else = p.parseExpression()
	}

	if !p.expect(TOKEN_END) {
		return nil
	}
	return caseExpr
}

// parseCastExpr parses a CAST expression.
func (p *Parser) parseCastExpr() Expr {
	p.expect(TOKEN_CAST)
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	return p.parseCastBody()
}

// parseCastBody parses "expr AS type )" after the opening paren.
func (p *Parser) parseCastBody() Expr {
	cast := &CastExpr{}
	cast.Expr = p.parseExpression()
	if p.failed() || !p.expect(TOKEN_AS) {
		return nil
	}

	cast.TypeName = p.parseTypeName()

	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return cast
}

// parseTypeName parses a type name with optional parameters: VARCHAR(255),
// DECIMAL(10, 2), DOUBLE PRECISION, INT[].
func (p *Parser) parseTypeName() string {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "type name"))
		return ""
	}

	var b strings.Builder
	b.WriteString(p.token.Literal)
	p.nextToken()

	// Multi-word types
	for p.check(TOKEN_IDENT) && !p.checkPeek(TOKEN_DOT) && isTypeWord(p.token.Literal) {
		b.WriteByte(' ')
		b.WriteString(p.token.Literal)
		p.nextToken()
	}

	// Type parameters like VARCHAR(255) or DECIMAL(10, 2)
	if p.match(TOKEN_LPAREN) {
		b.WriteByte('(')
		for {
			if p.check(TOKEN_NUMBER) || p.check(TOKEN_IDENT) {
				b.WriteString(p.token.Literal)
				p.nextToken()
			}

			if !p.match(TOKEN_COMMA) {
				break
			}
			b.WriteString(", ")
		}
		if !p.expect(TOKEN_RPAREN) {
			return ""
		}
		b.WriteByte(')')
	}

	// Array suffix: INT[]
	for p.check(TOKEN_LBRACKET) && p.checkPeek(TOKEN_RBRACKET) {
		p.nextToken()
		p.nextToken()
		b.WriteString("[]")
	}

	return b.String()
}

// isTypeWord reports whether word continues a multi-word type name.
func isTypeWord(word string) bool {
	switch strings.ToLower(word) {
	case "precision", "varying", "unsigned":
		return true
	}
	return false
}

// parseParenExpr parses a parenthesized expression, row value, or scalar subquery.
func (p *Parser) parseParenExpr() Expr {
	p.expect(TOKEN_LPAREN)

	switch {
	case p.check(TOKEN_SELECT):
		subquery := &SubqueryExpr{Statement: p.parseSelect(p.current, -1)}
		if p.failed() || !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return subquery
	case p.check(TOKEN_WITH):
		p.addErrorKind(ErrUnsupported, p.token.Pos, ErrUnsupportedCTE)
		return nil
	}

	expr := p.parseExpression()

	// Row value: (a, b)
	for !p.failed() && p.match(TOKEN_COMMA) {
		right := p.parseExpression()
		expr = &BinaryExpr{Left: expr, Op: TOKEN_COMMA, Right: right}
	}
	if p.failed() || !p.expect(TOKEN_RPAREN) {
		return nil
	}

	return &ParenExpr{Expr: expr}
}

// parseExistsExpr parses an EXISTS expression.
func (p *Parser) parseExistsExpr(not bool) Expr {
	// Consume EXISTS keyword
	p.nextToken()

	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	if !p.check(TOKEN_SELECT) {
		if p.check(TOKEN_WITH) {
			p.addErrorKind(ErrUnsupported, p.token.Pos, ErrUnsupportedCTE)
		} else {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT after EXISTS ("))
		}
		return nil
	}
	exists := &ExistsExpr{Not: not, Statement: p.parseSelect(p.current, -1)}
	if p.failed() || !p.expect(TOKEN_RPAREN) {
		return nil
	}

	return exists
}
