package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chuckie/autopr/internal/config"
)

// ErrSetupCancelled is returned by RunSetup when the wizard is left without
// confirming.
var ErrSetupCancelled = errors.New("setup cancelled")

type setupStep int

const (
	setupStepProvider setupStep = iota
	setupStepModel
	setupStepAPIKey
	setupStepOllamaURL
	setupStepConfirm
	setupStepDone
)

// SetupModel is an interactive setup wizard choosing the naming provider.
// It does not call any LLMs or write files.
type SetupModel struct {
	step setupStep

	providers      []string
	providerIndex  int
	models         []string
	modelIndex     int
	apiKeyInput    textinput.Model
	ollamaURLInput textinput.Model

	base      config.Config
	completed bool
	err       error
}

// NewSetup starts the wizard from cfg's current provider and model.
func NewSetup(cfg *config.Config) *SetupModel {
	base := *config.Default()
	if cfg != nil {
		base = *cfg
	}

	keyIn := textinput.New()
	keyIn.Prompt = "API key: "
	keyIn.EchoMode = textinput.EchoPassword
	keyIn.EchoCharacter = '*'
	keyIn.CharLimit = 200
	if base.Provider == "openai" || base.Provider == "groq" {
		keyIn.SetValue(base.APIKey)
	}

	urlIn := textinput.New()
	urlIn.Prompt = "Ollama URL: "
	urlIn.CharLimit = 200
	urlIn.SetValue(base.OllamaURL)

	m := &SetupModel{
		step:           setupStepProvider,
		providers:      config.Providers,
		apiKeyInput:    keyIn,
		ollamaURLInput: urlIn,
		base:           base,
	}
	for i, p := range m.providers {
		if p == base.Provider {
			m.providerIndex = i
			break
		}
	}
	m.loadModels()
	for i, model := range m.models {
		if model == base.Model {
			m.modelIndex = i
			break
		}
	}
	return m
}

func (m *SetupModel) provider() string {
	return m.providers[m.providerIndex]
}

func (m *SetupModel) model() string {
	return m.models[m.modelIndex]
}

func (m *SetupModel) loadModels() {
	m.models = config.ProviderModels[m.provider()]
	if len(m.models) == 0 {
		m.models = []string{""}
	}
	m.modelIndex = 0
}

func (m *SetupModel) Init() tea.Cmd {
	return nil
}

func (m *SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	// Errors should not lock the user out of the wizard.
	m.err = nil

	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.step != setupStepAPIKey && m.step != setupStepOllamaURL {
			return m, tea.Quit
		}
	}

	switch m.step {
	case setupStepProvider:
		return m.updateProvider(key)
	case setupStepModel:
		return m.updateModel(key)
	case setupStepAPIKey:
		return m.updateTextStep(key, &m.apiKeyInput, setupStepConfirm)
	case setupStepOllamaURL:
		return m.updateTextStep(key, &m.ollamaURLInput, setupStepConfirm)
	case setupStepConfirm:
		return m.updateConfirm(key)
	}
	return m, tea.Quit
}

func (m *SetupModel) View() string {
	var v string
	switch m.step {
	case setupStepProvider:
		v = m.viewList("Select the naming provider:", m.providers, m.providerIndex, "Keys: ↑/↓ select, Enter next, q quit")
	case setupStepModel:
		v = m.viewList("Select a model:", m.models, m.modelIndex, "Keys: ↑/↓ select, Enter next, Esc back, q quit")
	case setupStepAPIKey:
		v = m.viewText("API key", "Enter your "+m.provider()+" API key. Paste with Ctrl+V.", m.apiKeyInput.View())
	case setupStepOllamaURL:
		v = m.viewText("Ollama URL", "Where the Ollama server listens.", m.ollamaURLInput.View())
	case setupStepConfirm:
		v = m.viewConfirm()
	case setupStepDone:
		v = "Setup complete.\n"
	}

	if m.err != nil {
		v += "\nError: " + m.err.Error() + "\n"
	}
	return v
}

func (m *SetupModel) updateProvider(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIndex > 0 {
			m.providerIndex--
		}
	case "down", "j":
		if m.providerIndex < len(m.providers)-1 {
			m.providerIndex++
		}
	case "enter":
		m.loadModels()
		m.step = setupStepModel
	}
	return m, nil
}

func (m *SetupModel) updateModel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.modelIndex > 0 {
			m.modelIndex--
		}
	case "down", "j":
		if m.modelIndex < len(m.models)-1 {
			m.modelIndex++
		}
	case "esc":
		m.step = setupStepProvider
	case "enter":
		switch m.provider() {
		case "openai", "groq":
			m.step = setupStepAPIKey
			m.apiKeyInput.Focus()
			m.apiKeyInput.CursorEnd()
		case "ollama":
			m.step = setupStepOllamaURL
			m.ollamaURLInput.Focus()
			m.ollamaURLInput.CursorEnd()
		default:
			m.step = setupStepConfirm
		}
	}
	return m, nil
}

func (m *SetupModel) updateTextStep(msg tea.KeyMsg, input *textinput.Model, next setupStep) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.step = setupStepModel
		input.Blur()
		return m, nil
	case "ctrl+v", "ctrl+shift+v", "shift+insert":
		clip, err := clipboard.ReadAll()
		if err != nil {
			m.err = fmt.Errorf("clipboard paste failed: %w", err)
			return m, nil
		}
		clip = strings.NewReplacer("\r", "", "\n", "").Replace(clip)
		if strings.TrimSpace(clip) == "" {
			m.err = fmt.Errorf("clipboard is empty")
			return m, nil
		}
		input.SetValue(input.Value() + clip)
		input.CursorEnd()
		return m, nil
	case "enter":
		if strings.TrimSpace(input.Value()) == "" {
			m.err = fmt.Errorf("value cannot be empty")
			return m, nil
		}
		input.Blur()
		m.step = next
		return m, nil
	}

	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	return m, cmd
}

func (m *SetupModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		if _, err := m.Config(); err != nil {
			m.err = err
			return m, nil
		}
		m.completed = true
		m.step = setupStepDone
		return m, tea.Quit
	case "n", "esc":
		m.step = setupStepProvider
	}
	return m, nil
}

func (m *SetupModel) viewList(title string, items []string, selected int, keys string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("autopr setup") + "\n\n")
	b.WriteString(title + "\n\n")
	for i, item := range items {
		prefix := "  "
		if i == selected {
			prefix = "> "
		}
		b.WriteString(prefix + item + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(keys) + "\n")
	return b.String()
}

func (m *SetupModel) viewText(title, hint, inputView string) string {
	return fmt.Sprintf(
		"%s\n\n%s\n%s\n\n%s\n\n%s\n",
		titleStyle.Render("autopr setup"),
		title,
		hint,
		inputView,
		helpStyle.Render("Keys: Enter next, Esc back"),
	)
}

func (m *SetupModel) viewConfirm() string {
	keyStatus := "(not required)"
	switch m.provider() {
	case "openai", "groq":
		keyStatus = maskSecret(m.apiKeyInput.Value())
	case "ollama":
		keyStatus = "(not required, " + strings.TrimSpace(m.ollamaURLInput.Value()) + ")"
	}

	lines := []string{
		titleStyle.Render("autopr setup") + "\n",
		fmt.Sprintf("Provider:   %s", m.provider()),
		fmt.Sprintf("Model:      %s", m.model()),
		fmt.Sprintf("API key:    %s", keyStatus),
		"\nSave? (y/n)",
	}
	return strings.Join(lines, "\n") + "\n"
}

// Config returns the configuration the wizard has assembled, keeping every
// setting it does not ask about.
func (m *SetupModel) Config() (*config.Config, error) {
	cfg := m.base
	cfg.Provider = m.provider()
	cfg.Model = strings.TrimSpace(m.model())
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	switch cfg.Provider {
	case "openai", "groq":
		cfg.APIKey = strings.TrimSpace(m.apiKeyInput.Value())
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for %s", cfg.Provider)
		}
	case "ollama":
		cfg.APIKey = "ollama"
		cfg.OllamaURL = strings.TrimSpace(m.ollamaURLInput.Value())
	case "mock":
		cfg.APIKey = "mock"
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return &cfg, nil
}

// Completed reports whether the user confirmed the setup.
func (m *SetupModel) Completed() bool {
	return m.completed
}

func maskSecret(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "(missing)"
	}
	if len(v) <= 6 {
		return "******"
	}
	return v[:3] + strings.Repeat("*", len(v)-6) + v[len(v)-3:]
}

// RunSetup runs the wizard on the terminal and returns the confirmed
// configuration, or ErrSetupCancelled.
func RunSetup(cfg *config.Config) (*config.Config, error) {
	final, err := tea.NewProgram(NewSetup(cfg)).Run()
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	sm, ok := final.(*SetupModel)
	if !ok {
		return nil, fmt.Errorf("setup: unexpected model type %T", final)
	}
	if !sm.Completed() {
		return nil, ErrSetupCancelled
	}
	return sm.Config()
}
