package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSaveLoadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	in := &Config{
		Provider:    "openai",
		APIKey:      "sk-test",
		Model:       "o4-mini",
		Temperature: 0.2,
		OllamaURL:   "http://localhost:11434",
		DiffCap:     8192,
		IssuesCap:   1024,
		Redact:      true,
		BaseBranch:  "develop",
	}

	if err := SaveToFile(path, in); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if runtime.GOOS != "windows" && st.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", st.Mode().Perm())
	}

	out, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if out == nil {
		t.Fatalf("LoadFromFile() = nil, want config")
	}
	if out.Provider == nil || out.Model == nil || out.APIKey == nil {
		t.Fatalf("expected provider/model/apikey fields to be present")
	}
	if *out.Provider != in.Provider || *out.Model != in.Model || *out.APIKey != in.APIKey {
		t.Fatalf("round-trip mismatch: got provider=%q model=%q key=%q", *out.Provider, *out.Model, *out.APIKey)
	}
	if out.BaseBranch == nil || *out.BaseBranch != "develop" {
		t.Errorf("BaseBranch not persisted")
	}

	cfg := Default()
	applyPartialConfig(cfg, out)
	if cfg.IssuesCap != 1024 || cfg.Temperature != 0.2 {
		t.Errorf("applyPartialConfig() = %+v", cfg)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg != nil {
		t.Fatalf("LoadFromFile() = %#v, want nil", cfg)
	}
}
