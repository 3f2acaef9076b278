// Package cli wires configuration, adapters and the TUI behind the autopr
// command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chuckie/autopr/internal/adapters/git"
	"github.com/chuckie/autopr/internal/adapters/github"
	"github.com/chuckie/autopr/internal/adapters/llm"
	"github.com/chuckie/autopr/internal/adapters/process"
	"github.com/chuckie/autopr/internal/app"
	"github.com/chuckie/autopr/internal/config"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/session"
	"github.com/chuckie/autopr/internal/ui"
)

const version = "0.1.0"

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// flagAliases maps accepted spellings to the canonical flag names.
var flagAliases = map[string]string{
	"update-existing": "update-pr",
	"update":          "update-pr",
	"context":         "bigger-picture",
	"overview":        "bigger-picture",
	"prune":           "prune-branches",
	"cleanup":         "prune-branches",
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

type rootOptions struct {
	updatePR bool
	ready    bool
	stack    bool
	prune    bool
	what     string
	why      string
	bigger   string
}

func (o rootOptions) app() app.Options {
	return app.Options{
		UpdatePR: o.updatePR,
		Ready:    o.ready,
		Stack:    o.stack,
		Hints:    app.Hints{What: o.what, Why: o.why, BiggerPicture: o.bigger},
	}
}

// NewRootCmd creates and returns the root command for autopr.
func NewRootCmd() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "autopr",
		Short: "Commit, push and open a pull request with LLM-written names",
		Long: `autopr turns the changes in the current repository into a branch,
a commit and a pull request. A language model names the branch, writes the
commit title and the PR description from the diff and the open issues.

Staged changes are used as they are; with nothing staged autopr offers to
stage everything. On the default branch a new branch is created.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.prune {
				return prune(cmd)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			stop := initLogging(cmd, cfg)
			defer stop()
			return runSession(cmd.Context(), cfg, opts.app(), cmd.OutOrStdout())
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.updatePR, "update-pr", false, "Update the open pull request for the branch instead of creating one")
	flags.BoolVar(&opts.ready, "ready", false, "Open the pull request ready for review instead of as a draft")
	flags.BoolVar(&opts.stack, "stack", false, "Create a new branch on top of the current branch")
	flags.StringVar(&opts.what, "what", "", "What the change does, as a hint for the model")
	flags.StringVar(&opts.why, "why", "", "Why the change is needed, as a hint for the model")
	flags.StringVar(&opts.bigger, "bigger-picture", "", "The larger effort this change is part of")
	flags.BoolVar(&opts.prune, "prune-branches", false, "Delete local branches merged into the default branch and exit")
	flags.SetNormalizeFunc(normalizeFlag)

	rootCmd.AddCommand(newSetupCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newPruneCmd())

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the running session.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, NewRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "autopr: %v\n", err)
	if errors.Is(err, context.Canceled) {
		return session.Cancelled.ExitCode()
	}
	return 1
}

// loadConfig loads the configuration, running the setup wizard when no
// usable API key is configured.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err == nil {
		return cfg, nil
	}
	if !config.IsSetupRequired(err) {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
	fileCfg, ferr := config.LoadFile()
	if ferr != nil {
		fileCfg = cfg
	}
	configured, err := ui.RunSetup(fileCfg)
	if err != nil {
		return nil, err
	}
	if err := save(cmd, configured); err != nil {
		return nil, err
	}
	return config.Load()
}

func initLogging(cmd *cobra.Command, cfg *config.Config) func() {
	_, cleanup, err := observability.Init(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "autopr: logging disabled: %v\n", err)
	}
	return cleanup
}

// openApp binds the services to the repository containing the working
// directory.
func openApp(ctx context.Context, cfg *config.Config, opts app.Options) (*app.App, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	runner := process.NewRunner()
	repo, err := git.Open(ctx, runner, dir)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewFromConfig(cfg.Provider, cfg.APIKey, cfg.BaseURL, cfg.OllamaURL)
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	return app.New(repo, github.New(runner, repo.Dir()), client, app.SettingsFromConfig(cfg), opts), nil
}

func runSession(ctx context.Context, cfg *config.Config, opts app.Options, out io.Writer) error {
	a, err := openApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	ctrl := session.New(ctx, session.Deps{
		Workflow:  a.Workflow,
		Journal:   session.NewJournal(),
		Out:       out,
		Releasers: []io.Closer{a},
		LLMCalls:  a.Naming.Calls,
	})

	report, err := ui.Run(ctx, ctrl, cfg.Tick())
	if err != nil {
		return err
	}
	if code := report.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
