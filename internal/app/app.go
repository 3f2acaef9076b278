package app

import (
	"github.com/chuckie/autopr/internal/adapters/cache"
	"github.com/chuckie/autopr/internal/adapters/git"
	"github.com/chuckie/autopr/internal/config"
	"github.com/chuckie/autopr/internal/ports"
	"github.com/chuckie/autopr/internal/security"
)

// Settings are the tunables the services read from configuration.
type Settings struct {
	Model       string
	Temperature float32
	DiffCap     int
	IssuesCap   int
	Retries     int
	Redact      bool
	BaseBranch  string
}

// SettingsFromConfig copies the relevant configuration values.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		DiffCap:     cfg.DiffCap,
		IssuesCap:   cfg.IssuesCap,
		Retries:     cfg.LLMRetries,
		Redact:      cfg.Redact,
		BaseBranch:  cfg.BaseBranch,
	}
}

// App is the application container with all services.
type App struct {
	Git       ports.Git
	Worktrees *git.WorktreeManager
	Cache     *cache.PatchCache
	Diffs     *DiffService
	Naming    *NamingService
	Workflow  *Workflow
	Redactor  ports.Redactor
}

// New creates a new application with all dependencies wired.
func New(g ports.Git, gh ports.GitHub, llm ports.LLM, settings Settings, opts Options) *App {
	redactor := security.NewRedactor()
	patches := cache.NewPatchCache()
	worktrees := git.NewWorktreeManager(g)
	diffs := NewDiffService(g, worktrees, patches, NewResolver(g, settings.BaseBranch))
	naming := NewNamingService(llm, patches, redactor, settings)
	return &App{
		Git:       g,
		Worktrees: worktrees,
		Cache:     patches,
		Diffs:     diffs,
		Naming:    naming,
		Workflow:  NewWorkflow(g, gh, diffs, naming, settings.BaseBranch, opts),
		Redactor:  redactor,
	}
}

// Close releases every temporary worktree still open.
func (a *App) Close() error {
	return a.Worktrees.Close()
}
