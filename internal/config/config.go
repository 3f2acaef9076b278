package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float32
	BaseURL     string
	OllamaURL   string
	DiffCap     int
	IssuesCap   int
	LLMRetries  int
	Redact      bool
	BaseBranch  string
	TickMS      int
	LogPath     string
	LogLevel    string
}

// Providers accepted by LLM_PROVIDER.
var Providers = []string{"openai", "groq", "ollama", "mock"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:    "openai",
		Model:       "o4-mini",
		Temperature: 0,
		OllamaURL:   "http://localhost:11434",
		DiffCap:     200 * 1024,
		IssuesCap:   16 * 1024,
		LLMRetries:  1,
		Redact:      true,
		TickMS:      250,
		LogLevel:    "info",
	}
}

// Tick is the UI refresh interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// Load loads configuration with precedence:
// environment variables → config file → defaults.
func Load() (*Config, error) {
	cfg := Default()

	// Config file (best-effort)
	if path, err := DefaultConfigPath(); err == nil {
		if fileCfg, err := LoadFromFile(path); err == nil && fileCfg != nil {
			applyPartialConfig(cfg, fileCfg)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		if IsSetupRequired(err) {
			return cfg, err
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid with the config file only. Commands
// that write the file start from it so environment values are not persisted.
func LoadFile() (*Config, error) {
	cfg := Default()
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	fileCfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		applyPartialConfig(cfg, fileCfg)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("LLM_PROVIDER"); ok && v != "" {
		cfg.Provider = v
	}
	// OPENAI_MODEL is the older name; LLM_MODEL wins when both are set.
	if v, ok := os.LookupEnv("OPENAI_MODEL"); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := os.LookupEnv("LLM_MODEL"); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := os.LookupEnv("OPENAI_BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := os.LookupEnv("OLLAMA_URL"); ok && v != "" {
		cfg.OllamaURL = v
	}
	if v, ok := os.LookupEnv("LLM_TEMPERATURE"); ok && v != "" {
		cfg.Temperature = getEnvFloat("LLM_TEMPERATURE", cfg.Temperature)
	}
	if _, ok := os.LookupEnv("LLM_RETRIES"); ok {
		cfg.LLMRetries = getEnvInt("LLM_RETRIES", cfg.LLMRetries)
	}
	if _, ok := os.LookupEnv("DIFF_CAP_BYTES"); ok {
		cfg.DiffCap = getEnvInt("DIFF_CAP_BYTES", cfg.DiffCap)
	}
	if _, ok := os.LookupEnv("ISSUES_CAP_BYTES"); ok {
		cfg.IssuesCap = getEnvInt("ISSUES_CAP_BYTES", cfg.IssuesCap)
	}
	if _, ok := os.LookupEnv("REDACT_SECRETS"); ok {
		cfg.Redact = getEnvBool("REDACT_SECRETS", cfg.Redact)
	}
	if v, ok := os.LookupEnv("AUTOPR_BASE_BRANCH"); ok {
		cfg.BaseBranch = strings.TrimSpace(v)
	}
	if _, ok := os.LookupEnv("AUTOPR_TICK_MS"); ok {
		cfg.TickMS = getEnvInt("AUTOPR_TICK_MS", cfg.TickMS)
	}
	if v, ok := os.LookupEnv("AUTOPR_LOG_PATH"); ok && v != "" {
		cfg.LogPath = v
	}
	if v, ok := os.LookupEnv("AUTOPR_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}

	// Provider-specific API keys:
	// - If env var exists (even empty), it wins.
	// - Else we keep any value loaded from config file.
	switch cfg.Provider {
	case "openai":
		if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			cfg.APIKey = v
		} else if v, ok := os.LookupEnv("OPENAI_KEY"); ok {
			cfg.APIKey = v
		}
	case "groq":
		if _, ok := os.LookupEnv("GROQ_API_KEY"); ok {
			cfg.APIKey = getEnv("GROQ_API_KEY", "")
		}
	case "mock":
		cfg.APIKey = "mock"
	case "ollama":
		cfg.APIKey = "ollama"
	}
}

// Validate checks ranges and required values. A missing API key is reported
// as ErrSetupRequired so the caller can start the setup wizard.
func (c *Config) Validate() error {
	if !validProvider(c.Provider) {
		return fmt.Errorf("invalid provider: %s (must be one of %s)", c.Provider, strings.Join(Providers, ", "))
	}
	if (c.Provider == "openai" || c.Provider == "groq") && c.APIKey == "" {
		return fmt.Errorf("%w: API key not found for provider %s; set %s_API_KEY env var", ErrSetupRequired, c.Provider, strings.ToUpper(c.Provider))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", c.Temperature)
	}
	if c.DiffCap <= 0 {
		return fmt.Errorf("diff cap must be positive, got %d", c.DiffCap)
	}
	if c.IssuesCap < 0 {
		return fmt.Errorf("issues cap must not be negative, got %d", c.IssuesCap)
	}
	if c.LLMRetries < 0 {
		return fmt.Errorf("LLM retries must not be negative, got %d", c.LLMRetries)
	}
	if c.TickMS <= 0 {
		return fmt.Errorf("tick must be positive, got %dms", c.TickMS)
	}
	return nil
}

func validProvider(p string) bool {
	for _, v := range Providers {
		if v == p {
			return true
		}
	}
	return false
}

func applyPartialConfig(dst *Config, src *PartialConfig) {
	if dst == nil || src == nil {
		return
	}
	if src.Provider != nil {
		dst.Provider = *src.Provider
	}
	if src.APIKey != nil {
		dst.APIKey = *src.APIKey
	}
	if src.Model != nil {
		dst.Model = *src.Model
	}
	if src.Temperature != nil {
		dst.Temperature = *src.Temperature
	}
	if src.BaseURL != nil {
		dst.BaseURL = *src.BaseURL
	}
	if src.OllamaURL != nil {
		dst.OllamaURL = *src.OllamaURL
	}
	if src.DiffCap != nil {
		dst.DiffCap = *src.DiffCap
	}
	if src.IssuesCap != nil {
		dst.IssuesCap = *src.IssuesCap
	}
	if src.LLMRetries != nil {
		dst.LLMRetries = *src.LLMRetries
	}
	if src.Redact != nil {
		dst.Redact = *src.Redact
	}
	if src.BaseBranch != nil {
		dst.BaseBranch = *src.BaseBranch
	}
	if src.TickMS != nil {
		dst.TickMS = *src.TickMS
	}
	if src.LogPath != nil {
		dst.LogPath = *src.LogPath
	}
	if src.LogLevel != nil {
		dst.LogLevel = *src.LogLevel
	}
}

// Set assigns one configuration key by its file name, as used by
// `autopr config set KEY VALUE`.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "provider":
		c.Provider = value
	case "apikey", "api_key":
		c.APIKey = value
	case "model":
		c.Model = value
	case "baseurl", "base_url":
		c.BaseURL = value
	case "ollamaurl", "ollama_url":
		c.OllamaURL = value
	case "basebranch", "base_branch":
		c.BaseBranch = value
	case "loglevel", "log_level":
		c.LogLevel = value
	case "logpath", "log_path":
		c.LogPath = value
	case "temperature":
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("temperature: %w", err)
		}
		c.Temperature = float32(f)
	case "diffcap", "diff_cap":
		return setInt(&c.DiffCap, key, value)
	case "issuescap", "issues_cap":
		return setInt(&c.IssuesCap, key, value)
	case "llmretries", "llm_retries":
		return setInt(&c.LLMRetries, key, value)
	case "tickms", "tick_ms":
		return setInt(&c.TickMS, key, value)
	case "redact":
		c.Redact = parseBool(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// IsSetupRequired returns true when err indicates we should prompt for config.
func IsSetupRequired(err error) bool {
	return errors.Is(err, ErrSetupRequired)
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as float32 with a default value.
func getEnvFloat(key string, defaultValue float32) float32 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as bool with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		return parseBool(val)
	}
	return defaultValue
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}
