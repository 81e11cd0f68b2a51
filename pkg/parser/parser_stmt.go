package parser

import (
	"fmt"
)

// Statement parsing: SELECT core, SELECT list, trailing clauses.
//
// Grammar:
//
//	select_core   → SELECT [DISTINCT|ALL] select_list
//	                FROM from_list
//	                {clause}
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | table "." "*" | expr [[AS] identifier]
//	clause        → (WHERE | GROUP BY | HAVING | WINDOW | QUALIFY
//	                | ORDER BY | LIMIT | OFFSET | FETCH) <skipped>
//
// UNION, INTERSECT and EXCEPT after a select_core are rejected as
// unsupported, at any nesting level.

// parseSelect parses one select_core starting at SELECT, registers it in the
// tree and returns its statement index, or -1 on error.
func (p *Parser) parseSelect(parent, parentRef int) int {
	start := p.token.Pos
	if !p.expect(TOKEN_SELECT) {
		return -1
	}
	if p.depth >= p.maxDepth {
		p.addErrorKind(ErrDepthExceeded, start, fmt.Sprintf(ErrMaxDepth, p.maxDepth))
		return -1
	}

	p.depth++
	outer := p.current
	defer func() {
		p.depth--
		p.current = outer
	}()

	stmt := &Statement{
		Index:     len(p.tree.Statements),
		Parent:    parent,
		ParentRef: parentRef,
		Depth:     p.depth,
	}
	p.tree.Statements = append(p.tree.Statements, stmt)
	p.current = stmt.Index

	// DISTINCT / ALL
	if p.match(TOKEN_DISTINCT) {
		stmt.Distinct = true
	} else {
		p.match(TOKEN_ALL) // optional, consume if present
	}

	listStart := p.token.Pos.Offset
	stmt.Columns = p.parseSelectList()
	if p.failed() {
		return -1
	}
	stmt.Clauses = append(stmt.Clauses, Clause{Kind: ClauseSelect, Span: Span{Start: listStart, End: p.lastEnd}})

	// FROM clause is required
	if !p.check(TOKEN_FROM) {
		p.missingFrom()
		return -1
	}
	p.nextToken()
	fromStart := p.token.Pos.Offset
	p.parseFromList(stmt)
	if p.failed() {
		return -1
	}
	stmt.Clauses = append(stmt.Clauses, Clause{Kind: ClauseFrom, Span: Span{Start: fromStart, End: p.lastEnd}})

	p.parseTrailingClauses(stmt)
	if p.failed() {
		return -1
	}

	if p.isSetOp() {
		p.addErrorKind(ErrUnsupported, p.token.Pos, fmt.Sprintf(ErrUnsupportedSetOp, p.token.Type))
		return -1
	}

	stmt.Span = Span{Start: start.Offset, End: p.lastEnd}
	return stmt.Index
}

// missingFrom reports why the SELECT list was not followed by FROM.
func (p *Parser) missingFrom() {
	switch {
	case p.isSetOp():
		p.addErrorKind(ErrUnsupported, p.token.Pos, fmt.Sprintf(ErrUnsupportedSetOp, p.token.Type))
	case p.check(TOKEN_EOF), p.check(TOKEN_SEMICOLON), p.check(TOKEN_RPAREN), p.isClauseKeyword():
		p.addError(ErrMissingFrom)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "FROM"))
	}
}

// parseTrailingClauses skips WHERE, GROUP BY and the rest, recording the
// span of each clause body.
func (p *Parser) parseTrailingClauses(stmt *Statement) {
	for !p.failed() {
		kind, ok := clauseKinds[p.token.Type]
		if !ok {
			return
		}
		keyword := p.token.Type
		p.nextToken()
		if keyword == TOKEN_GROUP || keyword == TOKEN_ORDER {
			if !p.expect(TOKEN_BY) {
				return
			}
		}

		start := p.token.Pos.Offset
		p.skipBalanced(func() bool {
			return p.isClauseKeyword() || p.isSetOp()
		})
		end := p.lastEnd
		if end < start {
			end = start
		}
		stmt.Clauses = append(stmt.Clauses, Clause{Kind: kind, Span: Span{Start: start, End: end}})
	}
}

// parseSelectList parses the list of SELECT items.
func (p *Parser) parseSelectList() []*SelectItem {
	var items []*SelectItem

	for {
		item := p.parseSelectItem()
		if p.failed() {
			return items
		}
		items = append(items, item)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}

// parseSelectItem parses a single SELECT item.
func (p *Parser) parseSelectItem() *SelectItem {
	item := &SelectItem{}
	start := p.token.Pos.Offset

	// Bare *
	if p.check(TOKEN_STAR) {
		p.nextToken()
		item.Expr = &StarExpr{}
		item.Span = Span{Start: start, End: p.lastEnd}
		return item
	}

	// Regular expression; table.* is handled by the column reference rule
	item.Expr = p.parseExpression()
	item.Span = Span{Start: start, End: p.lastEnd}
	if p.failed() {
		return item
	}

	if _, isStar := item.Expr.(*StarExpr); isStar {
		return item
	}

	// Optional alias
	if p.match(TOKEN_AS) {
		if p.checkName() {
			item.Alias = p.token.Literal
			item.AliasKind = AliasExplicit
			p.nextToken()
		} else {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "alias after AS"))
		}
	} else if p.checkImplicitAlias(false) {
		// Alias without AS
		item.Alias = p.token.Literal
		item.AliasKind = AliasImplicit
		p.nextToken()
	}

	return item
}
