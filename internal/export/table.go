package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/collineage/pkg/lineage"
)

func newTable(w io.Writer, records []lineage.Record) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, r := range records {
		cells := Row(r)
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	return t
}

func writeTable(w io.Writer, records []lineage.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "(0 columns)")
		return err
	}
	newTable(w, records).Render()
	_, err := fmt.Fprintf(w, "(%d columns)\n", len(records))
	return err
}

func writeMarkdown(w io.Writer, records []lineage.Record) error {
	newTable(w, records).RenderMarkdown()
	return nil
}

func writeCSV(w io.Writer, records []lineage.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
