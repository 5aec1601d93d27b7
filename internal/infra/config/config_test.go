package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Gateway.Addr != ":8080" {
		t.Errorf("default addr = %q", cfg.Gateway.Addr)
	}
	if cfg.Limits.UserRequests != 10 || cfg.Limits.UserWindow != time.Minute {
		t.Errorf("default limits = %+v", cfg.Limits)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider.Model == "" {
		t.Error("expected default model")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
gateway:
  addr: ":9191"
  auth:
    tokens:
      - token: "secret"
        user_id: "alice"
limits:
  user_requests: 3
  user_window: 30s
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Addr != ":9191" {
		t.Errorf("addr = %q", cfg.Gateway.Addr)
	}
	if cfg.Limits.UserRequests != 3 || cfg.Limits.UserWindow != 30*time.Second {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	if len(cfg.Gateway.Auth.Tokens) != 1 || cfg.Gateway.Auth.Tokens[0].UserID != "alice" {
		t.Errorf("tokens = %+v", cfg.Gateway.Auth.Tokens)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CANVASAI_LLM_MODEL", "gpt-test")
	t.Setenv("CANVASAI_LIMITS_USER_REQUESTS", "7")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.LLM.Provider.Model != "gpt-test" {
		t.Errorf("model = %q", cfg.LLM.Provider.Model)
	}
	if cfg.Limits.UserRequests != 7 {
		t.Errorf("user_requests = %d", cfg.Limits.UserRequests)
	}
}

func TestValidateRejectsBadToken(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Auth.Tokens = []TokenConfig{{Token: "x"}}
	if err := Validate(cfg); err == nil {
		t.Error("token without user_id should fail validation")
	}
}
