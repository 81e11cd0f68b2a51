package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/collineage/internal/export"
	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// ExtractOptions holds options for the extract command.
type ExtractOptions struct {
	SQL    string
	Format string
	Out    string
	Save   bool
	Watch  bool
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract column lineage from a SELECT statement",
		Long: `Extract column lineage from a single SQL SELECT statement.

For every output column, reports its alias, its original expression, the
tables it is read from and the aggregate or cast applied to it. The SQL is
read from a file, from --sql, or from stdin when no file (or "-") is given.`,
		Example: `  # Extract from a file
  collineage extract query.sql

  # Extract from an inline statement
  collineage extract --sql "SELECT a.x AS X, COUNT(a.y) AS CNT FROM tbl a"

  # Follow subqueries down to base tables
  collineage extract query.sql --mode deep

  # Write a spreadsheet (parsed_sql_results.xlsx)
  collineage extract query.sql --format xlsx

  # Re-extract whenever the file changes
  collineage extract query.sql --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SQL, "sql", "e", "", "SQL statement to analyze")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format (overrides --output)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write output to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the extraction to history")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-extract when the file changes")

	_ = cmd.RegisterFlagCompletionFunc("format", FormatCompletion)

	return cmd
}

func runExtract(cmd *cobra.Command, args []string, opts *ExtractOptions) error {
	cc, err := NewCommandContext(cmd, opts.Format)
	if err != nil {
		return err
	}
	ex, err := cc.Cfg.NewExtractor()
	if err != nil {
		return err
	}

	if opts.Watch {
		if len(args) == 0 || args[0] == "-" || opts.SQL != "" {
			return errors.New("--watch requires a file argument")
		}
		if opts.Save {
			return errors.New("--watch cannot be combined with --save")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path := args[0]
		return watchFile(ctx, path, cc.Logger, func() error {
			err := extractAndWrite(cmd.Context(), cc, ex, path, cmd.InOrStdin(), nil, opts)
			if err != nil {
				cc.Renderer.Error(err)
			}
			return nil
		})
	}

	return extractAndWrite(cmd.Context(), cc, ex, "", cmd.InOrStdin(), args, opts)
}

// extractAndWrite reads the SQL (from path when set, otherwise from args,
// --sql or stdin), extracts it and writes the records.
func extractAndWrite(ctx context.Context, cc *CommandContext, ex *lineage.Extractor, path string, stdin io.Reader, args []string, opts *ExtractOptions) error {
	if path != "" {
		args = []string{path}
	}
	sql, err := readSQL(stdin, args, opts.SQL, cc.Cfg.MaxInputBytes)
	if err != nil {
		return err
	}

	res, err := ex.Extract(sql)
	if err != nil {
		cc.Logger.Debug("extraction failed", "error", err)
		return fmt.Errorf("extraction failed: %w", err)
	}
	cc.Logger.Debug("extracted lineage",
		"mode", res.Mode,
		"columns", len(res.Records),
		"tables", len(res.Tables),
		"transforms", len(res.Calls),
	)

	if err := writeRecords(cc, res.Records, opts.Out); err != nil {
		return err
	}

	if opts.Save {
		st, err := openStore(ctx, cc.Cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		saved, err := st.Save(ctx, sql, res)
		if err != nil {
			return fmt.Errorf("failed to save extraction: %w", err)
		}
		cc.Renderer.Status("Saved as " + saved.ID)
	}
	return nil
}

// writeRecords writes to out when set, to parsed_sql_results.xlsx for
// spreadsheets without a path, and to stdout otherwise.
func writeRecords(cc *CommandContext, records []lineage.Record, out string) error {
	r := cc.Renderer
	format := r.Format()

	if out == "" && format == export.FormatXLSX {
		out = format.FileName()
	}
	if out == "" {
		if format.Binary() && r.IsTTY() {
			return fmt.Errorf("refusing to write %s to a terminal; use --out", format)
		}
		return r.Records(records)
	}

	if format == export.FormatAuto {
		var known bool
		if format, known = formatForPath(out); !known {
			r.Warning(fmt.Sprintf("no format known for %s, writing %s", out, format))
		}
	}
	if dir := filepath.Dir(out); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(out) //nolint:gosec // G304: path is user provided on purpose
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := export.Write(f, format, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	r.Status(fmt.Sprintf("Wrote %d columns to %s", len(records), out))
	return nil
}

// formatForPath picks a format from the file extension. Unknown extensions
// give markdown and known == false.
func formatForPath(path string) (f export.Format, known bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return export.FormatMarkdown, false
	}
	f, err := export.ParseFormat(ext[1:])
	if err != nil || f == export.FormatAuto {
		return export.FormatMarkdown, false
	}
	return f, true
}

// readSQL returns the SQL text from the --sql flag, a file, or stdin,
// refusing input larger than limit bytes.
func readSQL(stdin io.Reader, args []string, inline string, limit int64) (string, error) {
	if inline != "" {
		if len(args) > 0 {
			return "", errors.New("use either --sql or a file argument, not both")
		}
		if int64(len(inline)) > limit {
			return "", fmt.Errorf("input exceeds %d bytes", limit)
		}
		return inline, nil
	}

	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, limit+1))
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if int64(len(data)) > limit {
			return "", fmt.Errorf("input exceeds %d bytes", limit)
		}
		return string(data), nil
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > limit {
		return "", fmt.Errorf("%s exceeds %d bytes", path, limit)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user provided on purpose
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// FormatCompletion completes output format names for flags.
func FormatCompletion(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		names[i] = string(f)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
