package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/collineage/internal/cli/output"
	"github.com/leapstack-labs/collineage/internal/config"
	"github.com/leapstack-labs/collineage/internal/export"
	"github.com/leapstack-labs/collineage/pkg/lineage"
)

const (
	replPrompt     = "collineage> "
	replContPrompt = "       ...> "
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively extract lineage",
		Long: `Start an interactive prompt. Each statement ends with a semicolon and
may span several lines; its lineage is printed as soon as it is complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (overrides --output)")
	_ = cmd.RegisterFlagCompletionFunc("format", FormatCompletion)
	return cmd
}

func runRepl(cmd *cobra.Command, format string) error {
	cc, err := NewCommandContext(cmd, format)
	if err != nil {
		return err
	}
	session, err := newReplSession(cc, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history"),
		AutoComplete:    newReplCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "collineage REPL (mode: %s)\n", session.extractor.Mode())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			session.reset()
			rl.SetPrompt(session.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if session.handleLine(line) {
			return nil
		}
		rl.SetPrompt(session.prompt())
	}
}

// replSession holds the state of one REPL: the pending statement and the
// current extractor and output format.
type replSession struct {
	cfg       config.Config
	extractor *lineage.Extractor
	renderer  *output.Renderer
	out       io.Writer
	errOut    io.Writer
	pending   strings.Builder
}

func newReplSession(cc *CommandContext, out, errOut io.Writer) (*replSession, error) {
	ex, err := cc.Cfg.NewExtractor()
	if err != nil {
		return nil, err
	}
	return &replSession{
		cfg:       *cc.Cfg,
		extractor: ex,
		renderer:  cc.Renderer,
		out:       out,
		errOut:    errOut,
	}, nil
}

func (s *replSession) prompt() string {
	if s.pending.Len() > 0 {
		return replContPrompt
	}
	return replPrompt
}

func (s *replSession) reset() {
	s.pending.Reset()
}

// handleLine processes one input line and reports whether to quit.
func (s *replSession) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.handleDotCommand(line)
	}

	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.pending.WriteString("\n")
		return false
	}

	sql := strings.TrimSuffix(s.pending.String(), ";")
	s.pending.Reset()

	res, err := s.extractor.Extract(sql)
	if err != nil {
		s.renderer.Error(err)
		return false
	}
	if err := s.renderer.Records(res.Records); err != nil {
		s.renderer.Error(err)
	}
	_, _ = fmt.Fprintln(s.out)
	return false
}

func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printReplHelp(s.out)

	case ".mode":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "mode: %s\n", s.extractor.Mode())
			return false
		}
		cfg := s.cfg
		cfg.Mode = parts[1]
		ex, err := cfg.NewExtractor()
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		s.cfg, s.extractor = cfg, ex
		_, _ = fmt.Fprintf(s.out, "mode: %s\n", ex.Mode())

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "format: %s\n", s.renderer.Format())
			return false
		}
		f, err := export.ParseFormat(parts[1])
		if err != nil {
			s.renderer.Error(err)
			return false
		}
		if f.Binary() {
			s.renderer.Error(fmt.Errorf("format %s is not available in the REPL", f))
			return false
		}
		s.renderer = output.NewRenderer(s.out, s.errOut, f)
		_, _ = fmt.Fprintf(s.out, "format: %s\n", f)

	case ".functions":
		_, _ = fmt.Fprintln(s.out, strings.Join(s.extractor.Functions(), " "))

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printReplHelp(w io.Writer) {
	help := `
Commands:
  .help                 Show this help message
  .mode [shallow|deep]  Show or set how subqueries are reported
  .format [name]        Show or set the output format
  .functions            List the recognized transform functions
  .quit / .exit         Exit the REPL

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newReplCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".mode", readline.PcItem("shallow"), readline.PcItem("deep")),
		readline.PcItem(".format",
			readline.PcItem("table"), readline.PcItem("markdown"), readline.PcItem("json"),
			readline.PcItem("yaml"), readline.PcItem("csv"),
		),
		readline.PcItem(".functions"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
		readline.PcItem("SELECT"),
	)
}
