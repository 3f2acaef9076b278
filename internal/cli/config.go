package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chuckie/autopr/internal/config"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ui"
)

// save validates cfg and writes it to the user config file.
func save(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return fmt.Errorf("determine config path: %w", err)
	}
	if err := config.SaveToFile(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved config to %s\n", path)
	return nil
}

func fileConfig() (*config.Config, error) {
	cfg, err := config.LoadFile()
	if err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	return cfg, nil
}

// newSetupCmd configures the provider non-interactively from flags, or with
// the wizard when they are incomplete.
func newSetupCmd() *cobra.Command {
	var provider, model, apiKey string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Choose the naming provider and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fileConfig()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.Provider = provider
			}
			if model != "" {
				cfg.Model = model
			}
			if apiKey != "" {
				cfg.APIKey = apiKey
			}
			switch cfg.Provider {
			case "mock", "ollama":
				cfg.APIKey = cfg.Provider
			}

			if provider != "" && cfg.Validate() == nil {
				return save(cmd, cfg)
			}
			configured, err := ui.RunSetup(cfg)
			if err != nil {
				return err
			}
			return save(cmd, configured)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider: "+strings.Join(config.Providers, ", "))
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for openai or groq")
	return cmd
}

// newConfigCmd shows and edits the config file.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if cfg == nil {
				return err
			}
			printConfig(cmd, path, cfg)
			if config.IsSetupRequired(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "\nSetup required. Run: autopr setup")
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set one key in the config file",
		Long: `Set one key in the config file. Keys: provider, api_key, model,
base_url, ollama_url, temperature, diff_cap, issues_cap, llm_retries,
redact, base_branch, tick_ms, log_path, log_level.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fileConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if cfg.Provider == "mock" || cfg.Provider == "ollama" {
				cfg.APIKey = cfg.Provider
			}
			if err := cfg.Validate(); err != nil && !config.IsSetupRequired(err) {
				return err
			}
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if err := config.SaveToFile(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved config to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if err := config.DeleteConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", path)
			return nil
		},
	})

	return cmd
}

func printConfig(cmd *cobra.Command, path string, cfg *config.Config) {
	keyStatus := "(missing)"
	switch {
	case cfg.Provider == "mock" || cfg.Provider == "ollama":
		keyStatus = "(not required)"
	case cfg.APIKey != "":
		keyStatus = "(set)"
	}
	base := cfg.BaseBranch
	if base == "" {
		base = "(origin default)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config path: %s\n", path)
	fmt.Fprintf(out, "Provider:    %s\n", cfg.Provider)
	fmt.Fprintf(out, "Model:       %s\n", cfg.Model)
	fmt.Fprintf(out, "API key:     %s\n", keyStatus)
	fmt.Fprintf(out, "Base branch: %s\n", base)
	fmt.Fprintf(out, "Diff cap:    %d bytes\n", cfg.DiffCap)
	fmt.Fprintf(out, "Issues cap:  %d bytes\n", cfg.IssuesCap)
	fmt.Fprintf(out, "Redact:      %t\n", cfg.Redact)
	fmt.Fprintf(out, "Log:         %s (%s)\n", observabilityPath(cfg), cfg.LogLevel)
}

func observabilityPath(cfg *config.Config) string {
	if cfg.LogPath != "" {
		return cfg.LogPath
	}
	return observability.DefaultLogPath()
}
