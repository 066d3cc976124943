package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("unexpected default port: %d", cfg.API.Port)
	}
	if cfg.Router.MaxTools != 5 || cfg.Router.Threshold != 0.0 {
		t.Errorf("unexpected router defaults: %+v", cfg.Router)
	}
	if cfg.Checkpoint.Backend != "memory" {
		t.Errorf("unexpected checkpoint backend: %s", cfg.Checkpoint.Backend)
	}
	if cfg.ImageGen.Skill != "nano-banana-image-gen" {
		t.Errorf("unexpected image gen skill: %s", cfg.ImageGen.Skill)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  format: json
api:
  port: 9000
skills:
  dir: /srv/skills
router:
  max_tools: 3
  threshold: 0.2
checkpoint:
  backend: sqlite
  path: /var/lib/skillslike/cp.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log not loaded: %+v", cfg.Log)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("port not loaded: %d", cfg.API.Port)
	}
	if cfg.Skills.Dir != "/srv/skills" {
		t.Errorf("skills dir not loaded: %s", cfg.Skills.Dir)
	}
	if cfg.Router.MaxTools != 3 || cfg.Router.Threshold != 0.2 {
		t.Errorf("router not loaded: %+v", cfg.Router)
	}
	if cfg.Checkpoint.Backend != "sqlite" {
		t.Errorf("checkpoint not loaded: %+v", cfg.Checkpoint)
	}
	// Untouched sections keep defaults.
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("llm default lost: %+v", cfg.LLM)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SKILLSLIKE_LOG__LEVEL", "error")
	t.Setenv("SKILLSLIKE_ROUTER__MAX_TOOLS", "2")
	t.Setenv("SKILLSLIKE_LLM__API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("env override missed: %s", cfg.Log.Level)
	}
	if cfg.Router.MaxTools != 2 {
		t.Errorf("env override missed: %d", cfg.Router.MaxTools)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("env override missed: %s", cfg.LLM.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
