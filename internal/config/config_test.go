package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pool.MaxSessions != 5 {
		t.Errorf("Pool.MaxSessions = %d, want 5", cfg.Pool.MaxSessions)
	}
	if cfg.Pool.MinSessions != 1 {
		t.Errorf("Pool.MinSessions = %d, want 1", cfg.Pool.MinSessions)
	}
	if cfg.Limits.MaxQueryRows != 1000 {
		t.Errorf("Limits.MaxQueryRows = %d, want 1000", cfg.Limits.MaxQueryRows)
	}
	if cfg.Limits.DefaultTableRows != 10 {
		t.Errorf("Limits.DefaultTableRows = %d, want 10", cfg.Limits.DefaultTableRows)
	}
	if got, want := cfg.Pool.AcquireTimeout(), 5*time.Second; got != want {
		t.Errorf("Pool.AcquireTimeout() = %v, want %v", got, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
pool:
  max_sessions: 10
  acquire_timeout_millis: 250
limits:
  max_query_rows: 50
security:
  danger_keywords: [" DROP ", "Truncate"]
  danger_keyword_match: TOKENS
logging:
  audit_log: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Pool.MaxSessions != 10 {
		t.Errorf("Pool.MaxSessions = %d, want 10", cfg.Pool.MaxSessions)
	}
	// Unset fields keep defaults
	if cfg.Pool.MinSessions != 1 {
		t.Errorf("Pool.MinSessions = %d, want default 1", cfg.Pool.MinSessions)
	}
	if cfg.Limits.MaxQueryRows != 50 {
		t.Errorf("Limits.MaxQueryRows = %d, want 50", cfg.Limits.MaxQueryRows)
	}
	if got, want := cfg.Pool.AcquireTimeout(), 250*time.Millisecond; got != want {
		t.Errorf("Pool.AcquireTimeout() = %v, want %v", got, want)
	}
	// Keywords normalized to lowercase, mode normalized
	if cfg.Security.DangerKeywords[0] != "drop" || cfg.Security.DangerKeywords[1] != "truncate" {
		t.Errorf("DangerKeywords not normalized: %v", cfg.Security.DangerKeywords)
	}
	if cfg.Security.DangerKeywordMatch != "tokens" {
		t.Errorf("DangerKeywordMatch = %q, want tokens", cfg.Security.DangerKeywordMatch)
	}
	if !cfg.Logging.AuditLog {
		t.Error("Logging.AuditLog = false, want true")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "pool: [not a map"},
		{"min exceeds max", "pool:\n  min_sessions: 9\n  max_sessions: 2\n"},
		{"zero max sessions", "pool:\n  max_sessions: 0\n"},
		{"bad match mode", "security:\n  danger_keyword_match: fuzzy\n"},
		{"zero max query rows", "limits:\n  max_query_rows: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFromFile(path); err == nil {
				t.Errorf("LoadFromFile succeeded for %q, want error", tt.name)
			}
		})
	}
}

func TestLoadExplicitPathMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load with missing explicit path succeeded, want error")
	}
}
