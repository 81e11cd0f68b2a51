// Package lineage extracts column lineage from a single SQL SELECT
// statement: for every output column, its alias, its original expression,
// the tables it reads from and the aggregate or cast applied to it.
//
// # Usage
//
//	records, err := lineage.Extract("SELECT a.x AS X, COUNT(a.y) AS CNT FROM tbl a")
//	if err != nil {
//	    // err is a *parser.Error
//	}
//
// For non-default behavior build an Extractor:
//
//	ex := lineage.New(lineage.WithMode(lineage.ModeDeep), lineage.WithMaxDepth(8))
//	res, err := ex.Extract(sql)
//
// Extraction needs no schema and no database. An Extractor is immutable and
// safe for concurrent use.
package lineage

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/collineage/pkg/parser"
)

// NoTransform is the ProcessingLogic of a column with no detected transform.
const NoTransform = "none"

// DefaultFunctions are the transform functions recognized by default.
var DefaultFunctions = []string{"SUM", "AVG", "COUNT", "MAX", "MIN", "CAST"}

// Mode selects how subqueries in FROM are reported as source tables.
type Mode int

const (
	// ModeShallow reports the immediate FROM entries: base table names and
	// subquery aliases.
	ModeShallow Mode = iota
	// ModeDeep follows subqueries down to the base tables they read.
	ModeDeep
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDeep:
		return "deep"
	default:
		return "shallow"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode parses "shallow" or "deep" (case-insensitive). An empty string
// is the default, shallow.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shallow":
		return ModeShallow, nil
	case "deep":
		return ModeDeep, nil
	default:
		return ModeShallow, fmt.Errorf("unknown lineage mode %q (want shallow or deep)", s)
	}
}

// Record is the lineage of one output column.
type Record struct {
	OriginalColumn  string   `json:"original_column" yaml:"original_column" msgpack:"original_column"`
	Alias           string   `json:"alias" yaml:"alias" msgpack:"alias"`
	SourceTables    []string `json:"source_tables" yaml:"source_tables" msgpack:"source_tables"`
	ProcessingLogic string   `json:"processing_logic" yaml:"processing_logic" msgpack:"processing_logic"`
}

// Result is the full output of an extraction.
type Result struct {
	Mode    Mode
	Records []Record
	Tables  []string           // source tables of the outermost SELECT
	Columns []ColumnExpression // resolved SELECT list
	Calls   []TransformCall    // every recognized call in the input
	Tree    *parser.Tree
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMode sets the table resolution mode.
func WithMode(mode Mode) Option {
	return func(e *Extractor) {
		e.mode = mode
	}
}

// WithMaxDepth bounds SELECT nesting. Non-positive values keep the default.
func WithMaxDepth(depth int) Option {
	return func(e *Extractor) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithFunctions replaces the recognized transform functions. Names are
// matched case-insensitively. An empty list keeps the defaults.
func WithFunctions(names ...string) Option {
	return func(e *Extractor) {
		if fns := normalizeFunctions(names); len(fns) > 0 {
			e.functions = fns
		}
	}
}

// Extractor extracts lineage with a fixed configuration.
type Extractor struct {
	mode      Mode
	maxDepth  int
	functions []string
}

// New creates an Extractor. Without options it uses shallow mode,
// parser.DefaultMaxDepth and DefaultFunctions.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		mode:      ModeShallow,
		maxDepth:  parser.DefaultMaxDepth,
		functions: normalizeFunctions(DefaultFunctions),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the table resolution mode.
func (e *Extractor) Mode() Mode { return e.mode }

// MaxDepth returns the SELECT nesting limit.
func (e *Extractor) MaxDepth() int { return e.maxDepth }

// Functions returns the recognized transform functions, upper-cased.
func (e *Extractor) Functions() []string { return slices.Clone(e.functions) }

// Extract parses sql and assembles one Record per SELECT item. On failure it
// returns a nil result and a *parser.Error.
func (e *Extractor) Extract(sql string) (*Result, error) {
	tree, err := parser.ParseWithOptions(sql, parser.Options{MaxDepth: e.maxDepth})
	if err != nil {
		return nil, err
	}

	root := tree.Root()
	columns := ResolveColumns(tree, root)
	tables := ResolveTables(tree, root, e.mode)
	calls := DetectTransforms(sql, e.functions)

	return &Result{
		Mode:    e.mode,
		Records: Assemble(columns, tables, calls),
		Tables:  tables,
		Columns: columns,
		Calls:   calls,
		Tree:    tree,
	}, nil
}

var defaultExtractor = New()

// Extract runs the default Extractor and returns the records.
func Extract(sql string) ([]Record, error) {
	res, err := defaultExtractor.Extract(sql)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Assemble pairs each column with the source tables and the first transform
// call whose argument occurs in the column's raw text.
//
// The pairing is textual: a call can attach to every column whose text
// contains its argument, not only to the column it was written in.
func Assemble(columns []ColumnExpression, tables []string, calls []TransformCall) []Record {
	records := make([]Record, 0, len(columns))
	for _, col := range columns {
		records = append(records, Record{
			OriginalColumn:  col.RawText,
			Alias:           col.Alias,
			SourceTables:    slices.Clone(tables),
			ProcessingLogic: processingLogic(col.RawText, calls),
		})
	}
	return records
}

// processingLogic returns "<function>(<argument>)" of the first call whose
// argument is a substring of raw, or NoTransform. Calls with a blank argument
// never match, since the empty string is contained in every column.
func processingLogic(raw string, calls []TransformCall) string {
	for _, call := range calls {
		if strings.TrimSpace(call.Argument) == "" {
			continue
		}
		if strings.Contains(raw, call.Argument) {
			return call.String()
		}
	}
	return NoTransform
}

// normalizeFunctions upper-cases, trims and de-duplicates names.
func normalizeFunctions(names []string) []string {
	var out []string
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
