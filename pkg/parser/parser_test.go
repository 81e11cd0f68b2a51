package parser_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/leapstack-labs/collineage/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, sql string) *parser.Tree {
	t.Helper()
	tree, err := parser.Parse(sql)
	require.NoError(t, err)
	require.NotNil(t, tree.Root())
	return tree
}

func TestParseSelectList(t *testing.T) {
	sql := "SELECT a.x AS X, COUNT(a.y) AS CNT, b c, price * qty, *, a.* FROM tbl a"
	tree := mustParse(t, sql)
	root := tree.Root()

	require.Len(t, root.Columns, 6)

	tests := []struct {
		raw   string
		alias string
		kind  parser.AliasKind
	}{
		{"a.x", "X", parser.AliasExplicit},
		{"COUNT(a.y)", "CNT", parser.AliasExplicit},
		{"b", "c", parser.AliasImplicit},
		{"price * qty", "", parser.AliasNone},
		{"*", "", parser.AliasNone},
		{"a.*", "", parser.AliasNone},
	}
	for i, tt := range tests {
		col := root.Columns[i]
		assert.Equal(t, tt.raw, tree.Text(col.Span), "column %d raw text", i)
		assert.Equal(t, tt.alias, col.Alias, "column %d alias", i)
		assert.Equal(t, tt.kind, col.AliasKind, "column %d alias kind", i)
	}

	ref, ok := root.Columns[0].Expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "a", ref.Table())
	assert.Equal(t, "x", ref.Column())

	fn, ok := root.Columns[1].Expr.(*parser.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "COUNT", fn.Name)
	require.Len(t, fn.Args, 1)

	star, ok := root.Columns[5].Expr.(*parser.StarExpr)
	require.True(t, ok)
	assert.Equal(t, "a", star.Table)
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		check func(t *testing.T, e parser.Expr)
	}{
		{
			name: "case with nested aggregate",
			expr: "SUM(CASE WHEN a > 0 THEN b ELSE 0 END)",
			check: func(t *testing.T, e parser.Expr) {
				fn := e.(*parser.FuncCall)
				require.Len(t, fn.Args, 1)
				c, ok := fn.Args[0].(*parser.CaseExpr)
				require.True(t, ok)
				assert.Len(t, c.Whens, 1)
				assert.NotNil(t, c.Else)
			},
		},
		{
			name: "cast",
			expr: "CAST(x AS DECIMAL(10, 2))",
			check: func(t *testing.T, e parser.Expr) {
				c := e.(*parser.CastExpr)
				assert.Equal(t, "DECIMAL(10, 2)", c.TypeName)
				assert.False(t, c.Postfix)
			},
		},
		{
			name: "postfix cast",
			expr: "x::varchar",
			check: func(t *testing.T, e parser.Expr) {
				c := e.(*parser.CastExpr)
				assert.Equal(t, "varchar", c.TypeName)
				assert.True(t, c.Postfix)
			},
		},
		{
			name: "try_cast",
			expr: "TRY_CAST(x AS INT)",
			check: func(t *testing.T, e parser.Expr) {
				assert.IsType(t, &parser.CastExpr{}, e)
			},
		},
		{
			name: "precedence",
			expr: "a + b * c",
			check: func(t *testing.T, e parser.Expr) {
				bin := e.(*parser.BinaryExpr)
				assert.Equal(t, parser.TOKEN_PLUS, bin.Op)
				assert.IsType(t, &parser.BinaryExpr{}, bin.Right)
			},
		},
		{
			name: "not between",
			expr: "x NOT BETWEEN 1 AND 10",
			check: func(t *testing.T, e parser.Expr) {
				b := e.(*parser.BetweenExpr)
				assert.True(t, b.Not)
			},
		},
		{
			name: "in list",
			expr: "x IN (1, 2, 3)",
			check: func(t *testing.T, e parser.Expr) {
				in := e.(*parser.InExpr)
				assert.Len(t, in.Values, 3)
				assert.Equal(t, -1, in.Subquery)
			},
		},
		{
			name: "is not null",
			expr: "x IS NOT NULL",
			check: func(t *testing.T, e parser.Expr) {
				is := e.(*parser.IsExpr)
				assert.True(t, is.Not)
				assert.Equal(t, parser.TOKEN_NULL, is.Value)
			},
		},
		{
			name: "ilike",
			expr: "name ILIKE 'a%'",
			check: func(t *testing.T, e parser.Expr) {
				like := e.(*parser.LikeExpr)
				assert.Equal(t, parser.TOKEN_ILIKE, like.Op)
			},
		},
		{
			name: "typed literal",
			expr: "DATE '2024-01-01'",
			check: func(t *testing.T, e parser.Expr) {
				lit := e.(*parser.Literal)
				assert.Equal(t, parser.LiteralTyped, lit.Type)
				assert.Equal(t, "DATE", lit.TypeName)
			},
		},
		{
			name: "left as function",
			expr: "LEFT(name, 3)",
			check: func(t *testing.T, e parser.Expr) {
				fn := e.(*parser.FuncCall)
				assert.Equal(t, "LEFT", fn.Name)
				assert.Len(t, fn.Args, 2)
			},
		},
		{
			name: "count distinct with filter",
			expr: "COUNT(DISTINCT id) FILTER (WHERE active)",
			check: func(t *testing.T, e parser.Expr) {
				fn := e.(*parser.FuncCall)
				assert.True(t, fn.Distinct)
				assert.NotNil(t, fn.Filter)
			},
		},
		{
			name: "count star",
			expr: "count(*)",
			check: func(t *testing.T, e parser.Expr) {
				fn := e.(*parser.FuncCall)
				assert.True(t, fn.Star)
			},
		},
		{
			name: "string concat and index",
			expr: "tags[1] || '-' || name",
			check: func(t *testing.T, e parser.Expr) {
				bin := e.(*parser.BinaryExpr)
				assert.Equal(t, parser.TOKEN_DPIPE, bin.Op)
			},
		},
		{
			name: "schema qualified column",
			expr: "s.t.c",
			check: func(t *testing.T, e parser.Expr) {
				ref := e.(*parser.ColumnRef)
				assert.Equal(t, []string{"s", "t", "c"}, ref.Parts)
				assert.Equal(t, "t", ref.Table())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, "SELECT "+tt.expr+" FROM t")
			root := tree.Root()
			require.Len(t, root.Columns, 1)
			assert.Equal(t, tt.expr, tree.Text(root.Columns[0].Span))
			tt.check(t, root.Columns[0].Expr)
		})
	}
}

func TestParseClauses(t *testing.T) {
	sql := "SELECT a, SUM(b) FROM t WHERE c > (1 + 2) GROUP BY a HAVING SUM(b) > 0 ORDER BY a DESC LIMIT 10 OFFSET 5;"
	tree := mustParse(t, sql)
	root := tree.Root()

	var kinds []parser.ClauseKind
	for _, c := range root.Clauses {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []parser.ClauseKind{
		parser.ClauseSelect, parser.ClauseFrom, parser.ClauseWhere, parser.ClauseGroupBy,
		parser.ClauseHaving, parser.ClauseOrderBy, parser.ClauseLimit, parser.ClauseOffset,
	}, kinds)

	where, ok := root.Clause(parser.ClauseWhere)
	require.True(t, ok)
	assert.Equal(t, "c > (1 + 2)", tree.Text(where.Span))

	having, ok := root.Clause(parser.ClauseHaving)
	require.True(t, ok)
	assert.Equal(t, "SUM(b) > 0", tree.Text(having.Span))

	_, ok = root.Clause(parser.ClauseQualify)
	assert.False(t, ok)
}

func TestParseSubqueries(t *testing.T) {
	sql := `SELECT t0.id, (SELECT max(v) FROM other) AS mx
FROM (SELECT id FROM (SELECT id FROM base) b) t0
JOIN dim d ON d.id = t0.id`
	tree := mustParse(t, sql)
	require.Len(t, tree.Statements, 4)

	root := tree.Root()
	assert.Equal(t, -1, root.Parent)
	assert.Equal(t, 1, root.Depth)
	require.Len(t, root.From, 2)

	// Scalar subquery in the SELECT list is parsed first
	scalar, ok := root.Columns[1].Expr.(*parser.SubqueryExpr)
	require.True(t, ok)
	inner := tree.Statement(scalar.Statement)
	require.NotNil(t, inner)
	assert.Equal(t, 0, inner.Parent)
	assert.Equal(t, -1, inner.ParentRef)
	assert.Equal(t, "other", inner.From[0].Name)

	derived := root.From[0]
	assert.Equal(t, parser.TableSubquery, derived.Kind)
	assert.Equal(t, "t0", derived.Alias)
	assert.True(t, derived.IsSubquery())

	mid := tree.Statement(derived.Nested)
	require.NotNil(t, mid)
	assert.Equal(t, 0, mid.Parent)
	assert.Equal(t, 0, mid.ParentRef)
	assert.Equal(t, 2, mid.Depth)

	leaf := tree.Statement(mid.From[0].Nested)
	require.NotNil(t, leaf)
	assert.Equal(t, mid.Index, leaf.Parent)
	assert.Equal(t, 3, leaf.Depth)
	assert.Equal(t, "base", leaf.From[0].Name)

	assert.Equal(t, "dim", root.From[1].Name)
	assert.Equal(t, "d", root.From[1].Alias)
	assert.Equal(t, parser.JoinInner, root.From[1].Join)
}

func TestParseDepthLimit(t *testing.T) {
	nested := func(levels int) string {
		sql := "SELECT x FROM base"
		for i := 1; i < levels; i++ {
			sql = "SELECT x FROM (" + sql + ") s"
		}
		return sql
	}

	tree, err := parser.ParseWithOptions(nested(3), parser.Options{MaxDepth: 3})
	require.NoError(t, err)
	assert.Len(t, tree.Statements, 3)

	_, err = parser.ParseWithOptions(nested(4), parser.Options{MaxDepth: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrDepthExceeded))

	_, err = parser.Parse(nested(parser.DefaultMaxDepth + 1))
	assert.ErrorIs(t, err, parser.ErrDepthExceeded)

	_, err = parser.Parse(nested(parser.DefaultMaxDepth))
	assert.NoError(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		kind    error
		message string
	}{
		{"empty", "", parser.ErrEmptyInput, ""},
		{"whitespace", "   \n\t ", parser.ErrEmptyInput, ""},
		{"comment only", "-- nothing\n/* here */", parser.ErrEmptyInput, ""},
		{"missing from", "SELECT 1", parser.ErrSyntax, parser.ErrMissingFrom},
		{"missing from before where", "SELECT a WHERE b", parser.ErrSyntax, parser.ErrMissingFrom},
		{"not a select", "UPDATE t SET a = 1", parser.ErrSyntax, "must start with SELECT"},
		{"insert", "INSERT INTO t VALUES (1)", parser.ErrSyntax, "must start with SELECT"},
		{"unbalanced open", "SELECT SUM(a FROM t", parser.ErrSyntax, parser.ErrUnbalancedParens},
		{"unbalanced close", "SELECT a) FROM t", parser.ErrSyntax, parser.ErrUnbalancedParens},
		{"unterminated string", "SELECT 'abc FROM t", parser.ErrSyntax, parser.ErrUnterminatedString},
		{"illegal char", "SELECT a ? b FROM t", parser.ErrSyntax, "illegal character"},
		{"missing subquery alias", "SELECT id FROM (SELECT id FROM base)", parser.ErrSyntax, parser.ErrMissingAlias},
		{"trailing garbage", "SELECT a FROM t u v", parser.ErrSyntax, "end of statement"},
		{"dangling comma", "SELECT a, FROM t", parser.ErrSyntax, "in expression"},
		{"alias after AS", "SELECT a AS FROM t", parser.ErrSyntax, "alias after AS"},
		{"natural join with on", "SELECT * FROM t1 NATURAL JOIN t2 ON t1.id = t2.id", parser.ErrSyntax, "NATURAL JOIN cannot have ON"},
		{"natural join with using", "SELECT * FROM t1 NATURAL JOIN t2 USING (id)", parser.ErrSyntax, "NATURAL JOIN cannot have USING"},
		{"union", "SELECT a FROM t UNION SELECT a FROM u", parser.ErrUnsupported, "UNION"},
		{"union in subquery", "SELECT a FROM (SELECT a FROM t UNION ALL SELECT a FROM u) x", parser.ErrUnsupported, "UNION"},
		{"intersect", "SELECT a FROM t INTERSECT SELECT a FROM u", parser.ErrUnsupported, "INTERSECT"},
		{"except", "SELECT a FROM t EXCEPT SELECT a FROM u", parser.ErrUnsupported, "EXCEPT"},
		{"union in where subquery", "SELECT a FROM t WHERE x IN (SELECT a FROM b UNION SELECT c FROM d)", parser.ErrUnsupported, "UNION"},
		{"except in join condition", "SELECT a FROM t JOIN u ON t.id IN (SELECT id FROM v EXCEPT SELECT id FROM w)", parser.ErrUnsupported, "EXCEPT"},
		{"intersect in having", "SELECT a FROM t GROUP BY a HAVING COUNT(*) > (SELECT 1 FROM u INTERSECT SELECT 2 FROM v)", parser.ErrUnsupported, "INTERSECT"},
		{"union in table function", "SELECT a FROM f((SELECT 1 FROM u UNION SELECT 2 FROM v)) x", parser.ErrUnsupported, "UNION"},
		{"window function", "SELECT ROW_NUMBER() OVER (ORDER BY a) FROM t", parser.ErrUnsupported, "OVER"},
		{"window in qualify", "SELECT a FROM t QUALIFY ROW_NUMBER() OVER (PARTITION BY a) = 1", parser.ErrUnsupported, "OVER"},
		{"cte", "WITH x AS (SELECT 1 FROM t) SELECT * FROM x", parser.ErrUnsupported, "WITH"},
		{"lateral", "SELECT * FROM t, LATERAL (SELECT * FROM u) x", parser.ErrUnsupported, "LATERAL"},
		{"second statement", "SELECT a FROM t; SELECT b FROM u", parser.ErrUnsupported, "one statement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := parser.Parse(tt.sql)
			require.Error(t, err)
			assert.Nil(t, tree)
			assert.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), tt.message)

			var perr *parser.Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.kind, perr.Kind)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Parse("SELECT a,\n  b FROM t\nUNION SELECT c FROM u")
	require.Error(t, err)

	var perr *parser.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Equal(t, 1, perr.Pos.Column)
	assert.True(t, strings.HasPrefix(err.Error(), "unsupported construct at line 3, column 1"))

	_, err = parser.Parse("")
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Pos.IsValid())
	assert.Equal(t, "empty input: no SQL statement found", err.Error())
}

func TestKindName(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"", "empty_input"},
		{"SELECT 1", "syntax_error"},
		{"SELECT a FROM t UNION SELECT b FROM u", "unsupported_construct"},
	}
	for _, tt := range tests {
		_, err := parser.Parse(tt.sql)
		assert.Equal(t, tt.want, parser.KindName(err), tt.sql)
	}

	_, err := parser.ParseWithOptions("SELECT a FROM (SELECT a FROM t) x", parser.Options{MaxDepth: 1})
	assert.Equal(t, "depth_exceeded", parser.KindName(err))
	assert.Equal(t, "internal", parser.KindName(errors.New("boom")))
}

func TestParseTrailingSemicolons(t *testing.T) {
	for _, sql := range []string{
		"SELECT a FROM t;",
		"SELECT a FROM t ;;",
		"SELECT a FROM t; -- done",
	} {
		_, err := parser.Parse(sql)
		assert.NoError(t, err, sql)
	}
}

func TestParseSpecialFormCalls(t *testing.T) {
	tests := []struct {
		sql  string
		raw  string
		name string
	}{
		{"SELECT EXTRACT(year FROM d) AS y FROM t", "EXTRACT(year FROM d)", "EXTRACT"},
		{"SELECT SUBSTRING(a FROM 1 FOR 2) AS s FROM t", "SUBSTRING(a FROM 1 FOR 2)", "SUBSTRING"},
		{"SELECT trim(BOTH ' ' FROM x) AS s FROM t", "trim(BOTH ' ' FROM x)", "trim"},
		{"SELECT POSITION(a IN b) AS p FROM t", "POSITION(a IN b)", "POSITION"},
		{"SELECT SUM(EXTRACT(day FROM (d))) AS s FROM t", "SUM(EXTRACT(day FROM (d)))", "SUM"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			tree := mustParse(t, tt.sql)
			root := tree.Root()
			require.Len(t, root.Columns, 1)
			assert.Equal(t, tt.raw, tree.Text(root.Columns[0].Span))

			fn, ok := root.Columns[0].Expr.(*parser.FuncCall)
			require.True(t, ok)
			assert.Equal(t, tt.name, fn.Name)
			require.Len(t, root.From, 1)
			assert.Equal(t, "t", root.From[0].Name)
		})
	}

	_, err := parser.Parse("SELECT EXTRACT(year FROM (SELECT d FROM u UNION SELECT d FROM v)) FROM t")
	assert.True(t, errors.Is(err, parser.ErrUnsupported), "got %v", err)
}

func TestParseNonReservedNames(t *testing.T) {
	tests := []struct {
		sql        string
		alias      string
		tableAlias string
	}{
		{"SELECT a filter FROM t", "filter", ""},
		{"SELECT a AS end FROM t", "end", ""},
		{"SELECT a desc, b FROM t", "desc", ""},
		{"SELECT COUNT(x) filter FROM t", "filter", ""},
		{"SELECT a window FROM t WHERE a > 1", "window", ""},
		{"SELECT t.offset FROM t", "", ""},
		{"SELECT fetch FROM t", "", ""},
		{"SELECT a FROM t asc", "", "asc"},
		{"SELECT a FROM t AS qualify WHERE a > 1", "", "qualify"},
		{"SELECT a FROM t desc JOIN u USING (id)", "", "desc"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			tree := mustParse(t, tt.sql)
			root := tree.Root()
			assert.Equal(t, tt.alias, root.Columns[0].Alias)
			assert.Equal(t, tt.tableAlias, root.From[0].Alias)
		})
	}
}

func TestParseNonReservedKeepClauses(t *testing.T) {
	tests := []struct {
		sql   string
		kind  parser.ClauseKind
		from  int
		alias string
	}{
		{"SELECT a FROM t OFFSET 5", parser.ClauseOffset, 1, ""},
		{"SELECT a FROM t FETCH FIRST 1 ROWS ONLY", parser.ClauseFetch, 1, ""},
		{"SELECT a FROM t QUALIFY x = 1", parser.ClauseQualify, 1, ""},
		{"SELECT a FROM t WINDOW w AS (PARTITION BY a)", parser.ClauseWindow, 1, ""},
		{"SELECT a FROM t x OFFSET 5", parser.ClauseOffset, 1, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			tree := mustParse(t, tt.sql)
			root := tree.Root()
			require.Len(t, root.From, tt.from)
			assert.Equal(t, tt.alias, root.From[0].Alias)
			require.NotEmpty(t, root.Clauses)
			assert.Equal(t, tt.kind, root.Clauses[len(root.Clauses)-1].Kind)
		})
	}

	tree := mustParse(t, "SELECT a FROM t FULL JOIN u ON t.id = u.id")
	require.Len(t, tree.Root().From, 2)
	assert.Empty(t, tree.Root().From[0].Alias)
	assert.Equal(t, parser.JoinFull, tree.Root().From[1].Join)
}
