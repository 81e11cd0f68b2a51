package lineage

import (
	"github.com/leapstack-labs/collineage/pkg/parser"
	"github.com/leapstack-labs/collineage/pkg/token"
)

// ColumnExpression is one resolved SELECT item.
type ColumnExpression struct {
	RawText   string // verbatim expression text, alias excluded
	Alias     string // never empty, falls back to RawText
	Qualifier string // "t0" in t0.goods_id or t0.*; empty otherwise
	AliasKind parser.AliasKind
	Span      token.Span
}

// ResolveColumns returns the SELECT list of stmt in source order.
// Duplicates are kept.
func ResolveColumns(tree *parser.Tree, stmt *parser.Statement) []ColumnExpression {
	if tree == nil || stmt == nil {
		return nil
	}

	columns := make([]ColumnExpression, 0, len(stmt.Columns))
	for _, item := range stmt.Columns {
		raw := tree.Text(item.Span)
		col := ColumnExpression{
			RawText:   raw,
			Alias:     item.Alias,
			Qualifier: qualifier(item.Expr),
			AliasKind: item.AliasKind,
			Span:      item.Span,
		}
		if col.Alias == "" {
			col.Alias = raw
		}
		columns = append(columns, col)
	}
	return columns
}

// qualifier returns the left identifier of a two-part column reference or
// of a qualified star. It is taken from the text alone and is not checked
// against the FROM list.
func qualifier(expr parser.Expr) string {
	switch e := expr.(type) {
	case *parser.ColumnRef:
		if len(e.Parts) == 2 {
			return e.Parts[0]
		}
	case *parser.StarExpr:
		return e.Table
	}
	return ""
}
