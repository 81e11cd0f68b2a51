package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/collineage/internal/export"
	"github.com/leapstack-labs/collineage/internal/store"
)

const sqlPreviewWidth = 60

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved extractions",
		Long:  `List, show and delete extractions saved with "extract --save".`,
	}
	cmd.AddCommand(newHistoryListCommand(), newHistoryShowCommand(), newHistoryDeleteCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved extractions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd, "")
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cc.Cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			list, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderHistory(cc, list)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 = all)")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd, "")
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cc.Cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			e, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			r := cc.Renderer
			switch r.EffectiveFormat() {
			case export.FormatJSON:
				enc := json.NewEncoder(r.Writer())
				enc.SetIndent("", "  ")
				return enc.Encode(e)
			case export.FormatYAML:
				return yaml.NewEncoder(r.Writer()).Encode(e)
			case export.FormatTable, export.FormatMarkdown:
				r.Header(2, fmt.Sprintf("Extraction %s (%s, %s)", e.ID, e.Mode, e.CreatedAt.Local().Format(time.DateTime)))
				r.Println(e.SQL)
				r.Println()
			}
			return writeRecords(cc, e.Records, "")
		},
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd, "")
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cc.Cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Renderer.Success("Deleted " + args[0])
			return nil
		},
	}
}

func renderHistory(cc *CommandContext, list []store.Extraction) error {
	r := cc.Renderer
	format := r.EffectiveFormat()

	switch format {
	case export.FormatJSON:
		if list == nil {
			list = []store.Extraction{}
		}
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case export.FormatYAML:
		return yaml.NewEncoder(r.Writer()).Encode(list)
	case export.FormatTable, export.FormatMarkdown:
	default:
		return fmt.Errorf("format %s is not supported for history", format)
	}

	if len(list) == 0 {
		r.Muted("No saved extractions")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Created", "Mode", "Columns", "Source Tables", "SQL"})
	for _, e := range list {
		t.AppendRow(table.Row{
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			e.Mode,
			e.ColumnCount,
			strings.Join(e.SourceTables, ", "),
			previewSQL(e.SQL),
		})
	}
	if format == export.FormatMarkdown {
		t.RenderMarkdown()
		return nil
	}
	t.Render()
	return nil
}

// previewSQL collapses whitespace and truncates sql for one table cell.
func previewSQL(sql string) string {
	s := []rune(strings.Join(strings.Fields(sql), " "))
	if len(s) <= sqlPreviewWidth {
		return string(s)
	}
	return string(s[:sqlPreviewWidth-3]) + "..."
}
