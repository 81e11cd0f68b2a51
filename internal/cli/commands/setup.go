package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/collineage/internal/cli/output"
	"github.com/leapstack-labs/collineage/internal/config"
	"github.com/leapstack-labs/collineage/internal/export"
	"github.com/leapstack-labs/collineage/internal/store"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the command's context. A
// non-empty format overrides the configured output format.
func NewCommandContext(cmd *cobra.Command, format string) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	if format == "" {
		format = cfg.Output
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), f),
	}, nil
}

// openStore opens the history database configured in cfg.
func openStore(ctx context.Context, cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.Open(ctx, cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", cfg.StatePath, err)
	}
	return s, nil
}
