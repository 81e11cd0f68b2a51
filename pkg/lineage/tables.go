package lineage

import (
	"github.com/leapstack-labs/collineage/pkg/parser"
)

// ResolveTables returns the source tables of stmt, de-duplicated in order of
// first appearance.
//
// In ModeShallow a named table is reported by its written name (with schema
// prefix if present) and a subquery by its alias. In ModeDeep subqueries are
// replaced by the tables they read, recursively. Table functions are
// reported by their function name in both modes.
func ResolveTables(tree *parser.Tree, stmt *parser.Statement, mode Mode) []string {
	if tree == nil || stmt == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var tables []string
	collectTables(tree, stmt, mode, seen, &tables)
	return tables
}

func collectTables(tree *parser.Tree, stmt *parser.Statement, mode Mode, seen map[string]struct{}, out *[]string) {
	for _, ref := range stmt.From {
		if ref.Kind == parser.TableSubquery && mode == ModeDeep {
			if nested := tree.Statement(ref.Nested); nested != nil {
				collectTables(tree, nested, mode, seen, out)
			}
			continue
		}

		name := ref.QualifiedName()
		if ref.Kind == parser.TableSubquery {
			name = ref.Alias
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		*out = append(*out, name)
	}
}
