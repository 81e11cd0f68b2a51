package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/collineage/internal/server"
	"github.com/leapstack-labs/collineage/internal/store"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	History bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lineage HTTP API",
		Long: `Start an HTTP server exposing lineage extraction.

Endpoints:
  POST   /api/lineage          extract one statement
  POST   /api/lineage/export   download results (?format=xlsx|csv|json|...)
  POST   /api/lineage/batch    extract several statements concurrently
  GET    /api/history          saved extractions (with --history)
  GET    /healthz              liveness check`,
		Example: `  # Serve on the configured address
  collineage serve

  # Serve on all interfaces with history enabled
  collineage serve --addr :8780 --history`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: 127.0.0.1:8780)")
	cmd.Flags().StringSlice("origins", nil, "Allowed CORS origins")
	cmd.Flags().BoolVar(&opts.History, "history", false, "Enable saving and the history endpoints")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, err := NewCommandContext(cmd, "")
	if err != nil {
		return err
	}
	extractOpts, err := cc.Cfg.ExtractorOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.SQLiteStore
	if opts.History {
		st, err = openStore(ctx, cc.Cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
	}

	srv := server.New(server.Config{
		Addr:           cc.Cfg.Server.Addr,
		AllowedOrigins: cc.Cfg.Server.AllowedOrigins,
		ReadTimeout:    cc.Cfg.Server.ReadTimeout,
		MaxBodyBytes:   cc.Cfg.MaxInputBytes,
		Options:        extractOpts,
		Store:          st,
		Logger:         cc.Logger,
	})

	cc.Renderer.Status("Serving lineage API on http://" + cc.Cfg.Server.Addr + " (Ctrl+C to stop)")
	return srv.Serve(ctx)
}
