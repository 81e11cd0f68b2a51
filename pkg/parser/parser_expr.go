package parser

import (
	"fmt"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceNone       = 0
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	precedenceAddition   = 5  (+, -, ||)
//	precedenceMultiply   = 6  (*, /, %)
//	precedenceUnary      = 7  (-, +, NOT)
//	precedencePostfix    = 8  (::, [])
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePostfix
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	// Parse prefix (unary operators and primary expressions)
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	// Parse infix operators while their precedence is >= minPrecedence
	for !p.failed() {
		prec := p.infixPrecedence(p.token.Type)
		if prec < minPrecedence {
			break
		}

		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		if p.checkPeek(TOKEN_EXISTS) {
			p.nextToken() // consume NOT
			return p.parseExistsExpr(true)
		}
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceNot)
		return &UnaryExpr{Op: TOKEN_NOT, Expr: expr}

	case TOKEN_MINUS:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &UnaryExpr{Op: TOKEN_MINUS, Expr: expr}

	case TOKEN_PLUS:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &UnaryExpr{Op: TOKEN_PLUS, Expr: expr}

	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of t as an infix operator, or
// precedenceNone if it is not one.
func (p *Parser) infixPrecedence(t TokenType) int {
	switch t {
	case TOKEN_OR:
		return precedenceOr
	case TOKEN_AND:
		return precedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return precedenceComparison
	case TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return precedenceComparison
	case TOKEN_NOT:
		// NOT as infix (for NOT IN, NOT LIKE, etc.) - handled specially
		return precedenceComparison
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return precedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_PERCENT:
		return precedenceMultiply
	case TOKEN_DCOLON, TOKEN_LBRACKET:
		return precedencePostfix
	default:
		return precedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		// NOT IN, NOT BETWEEN, NOT LIKE, NOT ILIKE
		return p.parseNotInfixExpr(left)

	case TOKEN_IS:
		return p.parseIsExpr(left)

	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, false)

	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, false)

	case TOKEN_LIKE, TOKEN_ILIKE:
		op := p.token.Type
		p.nextToken()
		return p.parseLikeExpr(left, false, op)

	case TOKEN_DCOLON:
		p.nextToken()
		return &CastExpr{Expr: left, TypeName: p.parseTypeName(), Postfix: true}

	case TOKEN_LBRACKET:
		p.nextToken()
		index := p.parseExpression()
		p.expect(TOKEN_RBRACKET)
		return &IndexExpr{Expr: left, Index: index}
	}

	// Standard binary operators
	op := p.token
	p.nextToken()

	// Parse right operand with higher precedence (left-associative)
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		return nil
	}

	return &BinaryExpr{Left: left, Op: op.Type, Right: right}
}

// parseNotInfixExpr handles NOT as an infix modifier (NOT IN, NOT BETWEEN, NOT LIKE).
func (p *Parser) parseNotInfixExpr(left Expr) Expr {
	p.nextToken() // consume NOT

	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, true)

	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, true)

	case TOKEN_LIKE, TOKEN_ILIKE:
		op := p.token.Type
		p.nextToken()
		return p.parseLikeExpr(left, true, op)

	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "IN, BETWEEN, LIKE, or ILIKE after NOT"))
		return nil
	}
}

// parseIsExpr parses IS [NOT] NULL / IS [NOT] TRUE / IS [NOT] FALSE.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // consume IS

	isNot := p.match(TOKEN_NOT)

	switch p.token.Type {
	case TOKEN_NULL, TOKEN_TRUE, TOKEN_FALSE:
		value := p.token.Type
		p.nextToken()
		return &IsExpr{Expr: left, Not: isNot, Value: value}

	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "NULL, TRUE, or FALSE after IS"))
		return nil
	}
}

// parseInExpr parses an IN expression.
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	in := &InExpr{Expr: left, Not: not, Subquery: -1}

	switch {
	case p.check(TOKEN_SELECT):
		in.Subquery = p.parseSelect(p.current, -1)
	case p.check(TOKEN_WITH):
		p.addErrorKind(ErrUnsupported, p.token.Pos, ErrUnsupportedCTE)
		return nil
	default:
		in.Values = p.parseExpressionList()
	}
	if p.failed() {
		return nil
	}

	p.expect(TOKEN_RPAREN)
	return in
}

// parseBetweenExpr parses a BETWEEN expression.
func (p *Parser) parseBetweenExpr(left Expr, not bool) Expr {
	between := &BetweenExpr{Expr: left, Not: not}
	// Parse bounds at addition precedence to avoid capturing AND
	between.Low = p.parseExpressionWithPrecedence(precedenceAddition)
	if !p.expect(TOKEN_AND) {
		return nil
	}
	between.High = p.parseExpressionWithPrecedence(precedenceAddition)
	return between
}

// parseLikeExpr parses a LIKE/ILIKE expression.
func (p *Parser) parseLikeExpr(left Expr, not bool, op TokenType) Expr {
	like := &LikeExpr{Expr: left, Not: not, Op: op}
	// Parse pattern at addition precedence
	like.Pattern = p.parseExpressionWithPrecedence(precedenceAddition)
	return like
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr

	for !p.failed() {
		expr := p.parseExpression()
		exprs = append(exprs, expr)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return exprs
}
