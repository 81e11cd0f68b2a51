package parser

import "strings"

// Tree is the parse result for one input string. Statements form an arena:
// Statements[0] is the outermost SELECT and every nested SELECT (derived
// table, scalar subquery, EXISTS/IN subquery) gets its own slot. Nested
// statements point back at their parent by index; the parent refers to them
// by index as well, so the tree can be walked either way without pointers
// cycling.
type Tree struct {
	Source     string
	Statements []*Statement
}

// Root returns the outermost statement.
func (t *Tree) Root() *Statement {
	if t == nil || len(t.Statements) == 0 {
		return nil
	}
	return t.Statements[0]
}

// Statement returns the statement at index i, or nil if out of range.
func (t *Tree) Statement(i int) *Statement {
	if i < 0 || i >= len(t.Statements) {
		return nil
	}
	return t.Statements[i]
}

// Text returns the verbatim source covered by span.
func (t *Tree) Text(span Span) string {
	return span.Text(t.Source)
}

// Statement is a single SELECT ... FROM ... block.
type Statement struct {
	Index     int
	Parent    int // index of the enclosing statement, -1 for the root
	ParentRef int // index into the parent's From when this is a derived table, else -1
	Depth     int // 1 for the root
	Span      Span

	Distinct bool
	Columns  []*SelectItem
	From     []*TableRef
	Clauses  []Clause
}

// Clause returns the first clause of the given kind.
func (s *Statement) Clause(kind ClauseKind) (Clause, bool) {
	for _, c := range s.Clauses {
		if c.Kind == kind {
			return c, true
		}
	}
	return Clause{}, false
}

// ClauseKind names a top-level clause of a SELECT.
type ClauseKind string

// ClauseKind constants in canonical order.
const (
	ClauseSelect  ClauseKind = "SELECT"
	ClauseFrom    ClauseKind = "FROM"
	ClauseWhere   ClauseKind = "WHERE"
	ClauseGroupBy ClauseKind = "GROUP BY"
	ClauseHaving  ClauseKind = "HAVING"
	ClauseWindow  ClauseKind = "WINDOW"
	ClauseQualify ClauseKind = "QUALIFY"
	ClauseOrderBy ClauseKind = "ORDER BY"
	ClauseLimit   ClauseKind = "LIMIT"
	ClauseOffset  ClauseKind = "OFFSET"
	ClauseFetch   ClauseKind = "FETCH"
)

// Clause records where a clause sits in the source. Span covers the clause
// body, not the keyword.
type Clause struct {
	Kind ClauseKind
	Span Span
}

// AliasKind tells how a select item got its alias.
type AliasKind int

// AliasKind constants.
const (
	AliasNone     AliasKind = iota // no alias written
	AliasExplicit                  // expr AS alias
	AliasImplicit                  // expr alias
)

// SelectItem is one entry of the SELECT list.
type SelectItem struct {
	Expr      Expr
	Span      Span // expression text, alias excluded
	Alias     string
	AliasKind AliasKind
}

// ---------- Table References ----------

// TableKind distinguishes the shapes a FROM entry can take.
type TableKind int

// TableKind constants.
const (
	TableNamed    TableKind = iota // [catalog.][schema.]name
	TableSubquery                  // ( SELECT ... ) alias
	TableFunction                  // name(args) [alias]
)

func (k TableKind) String() string {
	switch k {
	case TableSubquery:
		return "subquery"
	case TableFunction:
		return "function"
	default:
		return "table"
	}
}

// JoinType is how a table reference is attached to the previous one.
type JoinType string

// JoinType constants.
const (
	JoinNone  JoinType = ""
	JoinComma JoinType = ","
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// TableRef is one FROM-clause source.
type TableRef struct {
	Kind    TableKind
	Catalog string
	Schema  string
	Name    string // table or function name; empty for subqueries
	Alias   string
	Nested  int // statement index for TableSubquery, -1 otherwise
	Join    JoinType
	Natural bool
	Using   []string
	Span    Span
}

// QualifiedName returns the dotted name as written, without the alias.
func (t *TableRef) QualifiedName() string {
	var parts []string
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	if t.Name != "" {
		parts = append(parts, t.Name)
	}
	return strings.Join(parts, ".")
}

// EffectiveName returns the alias if present, otherwise the table name.
func (t *TableRef) EffectiveName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// IsSubquery reports whether the reference is a derived table.
func (t *TableRef) IsSubquery() bool {
	return t.Kind == TableSubquery
}

// ---------- Expressions ----------

// Expr represents an expression in SQL.
type Expr interface {
	exprNode()
}

// LiteralType classifies a Literal.
type LiteralType int

// LiteralType constants.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
	LiteralTyped // DATE '2024-01-01', INTERVAL '1 day'
)

// Literal is a constant value.
type Literal struct {
	Type     LiteralType
	Value    string
	TypeName string // set for LiteralTyped
}

// ColumnRef is a possibly qualified column name: a, t.a, s.t.a.
type ColumnRef struct {
	Parts []string
}

// Column returns the last name part.
func (c *ColumnRef) Column() string {
	if len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[len(c.Parts)-1]
}

// Table returns the part directly before the column, or "".
func (c *ColumnRef) Table() string {
	if len(c.Parts) < 2 {
		return ""
	}
	return c.Parts[len(c.Parts)-2]
}

// StarExpr is * or t.*.
type StarExpr struct {
	Table string
}

// FuncCall is name(args).
type FuncCall struct {
	Name     string // as written
	Args     []Expr
	Star     bool // COUNT(*)
	Distinct bool
	Filter   Expr
}

// WhenClause is one WHEN ... THEN ... arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CaseExpr is CASE [operand] WHEN ... [ELSE ...] END.
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

// CastExpr is CAST(expr AS type) or expr::type.
type CastExpr struct {
	Expr     Expr
	TypeName string
	Postfix  bool // written as expr::type
}

// BinaryExpr is left op right.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

// UnaryExpr is op expr.
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

// ParenExpr is ( expr ).
type ParenExpr struct {
	Expr Expr
}

// IndexExpr is expr[index].
type IndexExpr struct {
	Expr  Expr
	Index Expr
}

// InExpr is expr [NOT] IN (values | subquery).
type InExpr struct {
	Expr     Expr
	Not      bool
	Values   []Expr
	Subquery int // statement index, -1 for a value list
}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// LikeExpr is expr [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Op      TokenType
	Pattern Expr
}

// IsExpr is expr IS [NOT] NULL|TRUE|FALSE.
type IsExpr struct {
	Expr  Expr
	Not   bool
	Value TokenType
}

// SubqueryExpr is a scalar subquery.
type SubqueryExpr struct {
	Statement int
}

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not       bool
	Statement int
}

func (*Literal) exprNode()      {}
func (*ColumnRef) exprNode()    {}
func (*StarExpr) exprNode()     {}
func (*FuncCall) exprNode()     {}
func (*CaseExpr) exprNode()     {}
func (*CastExpr) exprNode()     {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*ParenExpr) exprNode()    {}
func (*IndexExpr) exprNode()    {}
func (*InExpr) exprNode()       {}
func (*BetweenExpr) exprNode()  {}
func (*LikeExpr) exprNode()     {}
func (*IsExpr) exprNode()       {}
func (*SubqueryExpr) exprNode() {}
func (*ExistsExpr) exprNode()   {}
