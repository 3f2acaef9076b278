package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chuckie/autopr/internal/app"
	"github.com/chuckie/autopr/internal/config"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete local branches merged into the default branch",
		Long: `Delete local branches already merged into the default branch. The
current branch and the default branch are never deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return prune(cmd)
		},
	}
}

// prune needs no API key, so a configuration still awaiting setup is fine.
func prune(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if cfg == nil {
		return fmt.Errorf("configuration: %w", err)
	}
	stop := initLogging(cmd, cfg)
	defer stop()
	return runPrune(cmd.Context(), cfg, cmd.OutOrStdout())
}

// runPrune works without the TUI and without a language model.
func runPrune(ctx context.Context, cfg *config.Config, out io.Writer) error {
	pruneCfg := *cfg
	pruneCfg.Provider = "mock"
	a, err := openApp(ctx, &pruneCfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.Workflow.Prune(ctx, func(msg string) {
		fmt.Fprintln(out, msg)
	})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		fmt.Fprintln(out, "No merged branches to delete.")
	}
	return nil
}
