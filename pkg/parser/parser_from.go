package parser

import (
	"fmt"
	"strings"
)

// FROM clause parsing: table references, derived tables, table functions, JOINs.
//
// Grammar:
//
//	from_list     → table_ref (join)*
//	table_ref     → table_name | derived_table | table_function
//	table_name    → [catalog "."] [schema "."] identifier [[AS] identifier]
//	derived_table → "(" select_core ")" [AS] identifier     -- alias required
//	table_function → identifier "(" <balanced> ")" [[AS] identifier]
//	join          → join_type JOIN table_ref [ON <skipped> | USING "(" ident_list ")"]
//	              | "," table_ref
//	join_type     → [NATURAL] ([INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS)
//
// LATERAL is rejected as unsupported.

// parseFromList parses the FROM list into stmt.From.
func (p *Parser) parseFromList(stmt *Statement) {
	p.parseTableRef(stmt, JoinNone, false)

	for !p.failed() {
		switch {
		case p.match(TOKEN_COMMA):
			p.parseTableRef(stmt, JoinComma, false)
		case p.isJoinStart():
			p.parseJoin(stmt)
		default:
			return
		}
	}
}

// parseJoin parses a JOIN and the table reference it attaches.
func (p *Parser) parseJoin(stmt *Statement) {
	natural := p.match(TOKEN_NATURAL)

	joinType := JoinInner
	switch p.token.Type {
	case TOKEN_INNER:
		p.nextToken()
	case TOKEN_LEFT:
		joinType = JoinLeft
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_RIGHT:
		joinType = JoinRight
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_FULL:
		joinType = JoinFull
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_CROSS:
		joinType = JoinCross
		p.nextToken()
	}

	if !p.expect(TOKEN_JOIN) {
		return
	}

	ref := p.parseTableRef(stmt, joinType, natural)
	if ref == nil || p.failed() {
		return
	}
	p.parseJoinCondition(ref)
}

// parseJoinCondition handles ON/USING/NATURAL validation.
func (p *Parser) parseJoinCondition(ref *TableRef) {
	switch {
	case ref.Natural:
		// NATURAL JOIN cannot have ON or USING
		if p.check(TOKEN_ON) {
			p.addError("NATURAL JOIN cannot have ON clause")
		}
		if p.check(TOKEN_USING) {
			p.addError("NATURAL JOIN cannot have USING clause")
		}
	case p.match(TOKEN_ON):
		p.skipBalanced(func() bool {
			return p.check(TOKEN_COMMA) || p.isJoinStart() || p.isClauseKeyword() || p.isSetOp()
		})
	case p.match(TOKEN_USING):
		ref.Using = p.parseUsingColumns()
	}
}

// parseUsingColumns parses the column list in USING (col1, col2, ...).
func (p *Parser) parseUsingColumns() []string {
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	var cols []string
	for {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected column name in USING clause")
			return cols
		}
		cols = append(cols, p.token.Literal)
		p.nextToken()
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return cols
}

// parseTableRef parses one table reference and appends it to stmt.From.
func (p *Parser) parseTableRef(stmt *Statement, join JoinType, natural bool) *TableRef {
	start := p.token.Pos
	ref := &TableRef{Nested: -1, Join: join, Natural: natural}

	switch {
	case p.check(TOKEN_LATERAL):
		p.addErrorKind(ErrUnsupported, start, ErrUnsupportedLateral)
		return nil
	case p.check(TOKEN_LPAREN):
		stmt.From = append(stmt.From, ref)
		p.parseDerivedTable(stmt, ref, len(stmt.From)-1)
	case p.check(TOKEN_IDENT):
		stmt.From = append(stmt.From, ref)
		p.parseNamedTable(ref)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "table name"))
		return nil
	}
	if p.failed() {
		return nil
	}

	ref.Span = Span{Start: start.Offset, End: p.lastEnd}
	return ref
}

// parseNamedTable parses a table name or a table function call.
func (p *Parser) parseNamedTable(ref *TableRef) {
	// Parse potentially qualified name: catalog.schema.table
	parts := []string{p.token.Literal}
	p.nextToken()

	for p.match(TOKEN_DOT) {
		if !p.check(TOKEN_IDENT) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "identifier after ."))
			return
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	switch len(parts) {
	case 1:
		ref.Name = parts[0]
	case 2:
		ref.Schema = parts[0]
		ref.Name = parts[1]
	default:
		// Anything beyond catalog.schema.table folds into the catalog
		n := len(parts)
		ref.Catalog = strings.Join(parts[:n-2], ".")
		ref.Schema = parts[n-2]
		ref.Name = parts[n-1]
	}

	// Table function: generate_series(1, 10) g
	if p.check(TOKEN_LPAREN) {
		ref.Kind = TableFunction
		p.nextToken()
		p.skipBalanced(func() bool { return false })
		if !p.expect(TOKEN_RPAREN) {
			return
		}
	}

	p.parseTableAlias(ref)
}

// parseDerivedTable parses ( SELECT ... ) alias. The alias is mandatory.
func (p *Parser) parseDerivedTable(stmt *Statement, ref *TableRef, refIndex int) {
	open := p.token.Pos
	p.nextToken() // consume (

	switch {
	case p.check(TOKEN_WITH):
		p.addErrorKind(ErrUnsupported, p.token.Pos, ErrUnsupportedCTE)
		return
	case !p.check(TOKEN_SELECT):
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT in derived table"))
		return
	}

	ref.Kind = TableSubquery
	ref.Nested = p.parseSelect(stmt.Index, refIndex)
	if p.failed() || !p.expect(TOKEN_RPAREN) {
		return
	}

	p.parseTableAlias(ref)
	if !p.failed() && ref.Alias == "" {
		p.addErrorKind(ErrSyntax, open, ErrMissingAlias)
	}
}

// parseTableAlias parses an optional [AS] alias.
func (p *Parser) parseTableAlias(ref *TableRef) {
	if p.match(TOKEN_AS) {
		if !p.checkName() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "alias after AS"))
			return
		}
		ref.Alias = p.token.Literal
		p.nextToken()
	} else if p.checkImplicitAlias(true) {
		ref.Alias = p.token.Literal
		p.nextToken()
	}
}
