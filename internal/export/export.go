// Package export renders lineage records in the supported output formats.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// Format is an output format name.
type Format string

// Output formats.
const (
	FormatAuto     Format = "auto" // table on a terminal, markdown otherwise
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatMsgpack  Format = "msgpack"
	FormatXLSX     Format = "xlsx"
)

// Formats lists every accepted format name.
var Formats = []Format{
	FormatAuto, FormatTable, FormatMarkdown, FormatJSON,
	FormatYAML, FormatCSV, FormatMsgpack, FormatXLSX,
}

// Spreadsheet layout shared by every tabular format.
const (
	SheetName    = "Parsed Results"
	BaseFileName = "parsed_sql_results"
)

// Headers are the column titles of tabular output.
var Headers = []string{"Original Column", "Alias", "Source Table", "Processing Logic"}

// ParseFormat parses a format name (case-insensitive). "md" is accepted for
// markdown and "text" for table. An empty name is FormatAuto.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return FormatAuto, nil
	case "md":
		return FormatMarkdown, nil
	case "text":
		return FormatTable, nil
	}
	for _, f := range Formats {
		if Format(name) == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of %s)", s, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Binary reports whether the format produces non-text output.
func (f Format) Binary() bool {
	return f == FormatMsgpack || f == FormatXLSX
}

// Extension returns the file extension for the format, without a dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatTable, FormatAuto:
		return "txt"
	default:
		return string(f)
	}
}

// FileName returns the default download name for the format.
func (f Format) FileName() string {
	return BaseFileName + "." + f.Extension()
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMsgpack:
		return "application/msgpack"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Resolve replaces FormatAuto with FormatTable when w is a terminal and
// with FormatMarkdown otherwise. Other formats are returned unchanged.
func Resolve(f Format, w io.Writer) Format {
	if f != FormatAuto {
		return f
	}
	if IsTerminal(w) {
		return FormatTable
	}
	return FormatMarkdown
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// Write renders records to w in format f.
func Write(w io.Writer, f Format, records []lineage.Record) error {
	if records == nil {
		records = []lineage.Record{}
	}
	switch Resolve(f, w) {
	case FormatTable:
		return writeTable(w, records)
	case FormatMarkdown:
		return writeMarkdown(w, records)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, records)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// Row returns the tabular cells of r in Headers order.
func Row(r lineage.Record) []string {
	return []string{r.OriginalColumn, r.Alias, strings.Join(r.SourceTables, ", "), r.ProcessingLogic}
}
