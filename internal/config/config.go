// Package config handles configuration loading and validation for oracle-db-mcp.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration structure.
// Every field is optional in the file; absent values take the defaults from
// DefaultConfig. The connection descriptor itself is never part of the file,
// it comes from the command line.
type Config struct {
	Pool     PoolConfig     `yaml:"pool"`
	Limits   LimitsConfig   `yaml:"limits"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`

	// ConfigPath is the path to the loaded config file (set by Load); used to
	// resolve relative paths like the audit log.
	ConfigPath string `yaml:"-"`
}

// PoolConfig holds the Oracle session pool sizing.
type PoolConfig struct {
	MinSessions          int `yaml:"min_sessions"`
	MaxSessions          int `yaml:"max_sessions"`
	SessionIncrement     int `yaml:"session_increment"`
	IdleTimeoutSeconds   int `yaml:"idle_timeout_seconds"`
	AcquireTimeoutMillis int `yaml:"acquire_timeout_millis"`
}

// AcquireTimeout returns how long an operation waits for a pooled session
// before failing.
func (p PoolConfig) AcquireTimeout() time.Duration {
	return time.Duration(p.AcquireTimeoutMillis) * time.Millisecond
}

// IdleTimeout returns how long an idle session may sit in the pool before the
// pool is allowed to close it.
func (p PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutSeconds) * time.Second
}

// LimitsConfig bounds result sizes returned to the caller.
type LimitsConfig struct {
	// MaxQueryRows is the hard ceiling on rows fetched by the query tool and
	// the upper bound for get_table_data limits, independent of what the
	// caller asks for.
	MaxQueryRows int `yaml:"max_query_rows"`
	// DefaultTableRows is the get_table_data row limit when the caller gives none.
	DefaultTableRows int `yaml:"default_table_rows"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	DangerKeywords     []string `yaml:"danger_keywords"`
	DangerKeywordMatch string   `yaml:"danger_keyword_match"` // "whole_text" (default) or "tokens"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	AuditLog bool   `yaml:"audit_log"`
	LogFile  string `yaml:"log_file"`
	Verbose  bool   `yaml:"verbose"` // when true, log one stderr line per tool call
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MinSessions:          1,
			MaxSessions:          5,
			SessionIncrement:     1,
			IdleTimeoutSeconds:   60,
			AcquireTimeoutMillis: 5000,
		},
		Limits: LimitsConfig{
			MaxQueryRows:     1000,
			DefaultTableRows: 10,
		},
		Security: SecurityConfig{
			DangerKeywords: []string{
				"truncate",
				"drop",
				"alter system",
				"shutdown",
				"grant dba",
				"delete",
			},
			DangerKeywordMatch: "whole_text",
		},
		Logging: LoggingConfig{
			AuditLog: false,
			Verbose:  false,
			LogFile:  "audit.log",
		},
	}
}

// Load reads and parses the configuration file.
// It looks for the config file in the following order:
// 1. The explicit path (--config flag), which must exist when given
// 2. Path specified by ORACLE_DB_MCP_CONFIG environment variable
// 3. config.yaml in the executable's directory
// 4. config.yaml in the current working directory
// When no file is found, the defaults are returned; the server runs fine
// without a config file.
func Load(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		cfg, err := LoadFromFile(explicitPath)
		if err != nil {
			return nil, err
		}
		cfg.ConfigPath = explicitPath
		return cfg, nil
	}

	configPath := findConfigPath()
	if configPath == "" {
		return DefaultConfig(), nil
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = configPath
	return cfg, nil
}

// LoadFromFile reads and parses a configuration file from the specified path.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Normalize danger keywords to lowercase
	for i, kw := range config.Security.DangerKeywords {
		config.Security.DangerKeywords[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	// Default danger keyword match mode (before Validate)
	if config.Security.DangerKeywordMatch == "" {
		config.Security.DangerKeywordMatch = "whole_text"
	} else {
		config.Security.DangerKeywordMatch = strings.ToLower(strings.TrimSpace(config.Security.DangerKeywordMatch))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Pool.MinSessions < 0 {
		return fmt.Errorf("pool.min_sessions must not be negative, got %d", c.Pool.MinSessions)
	}
	if c.Pool.MaxSessions < 1 {
		return fmt.Errorf("pool.max_sessions must be at least 1, got %d", c.Pool.MaxSessions)
	}
	if c.Pool.MinSessions > c.Pool.MaxSessions {
		return fmt.Errorf("pool.min_sessions (%d) must not exceed pool.max_sessions (%d)",
			c.Pool.MinSessions, c.Pool.MaxSessions)
	}
	if c.Pool.SessionIncrement < 1 {
		return fmt.Errorf("pool.session_increment must be at least 1, got %d", c.Pool.SessionIncrement)
	}
	if c.Pool.AcquireTimeoutMillis < 1 {
		return fmt.Errorf("pool.acquire_timeout_millis must be at least 1, got %d", c.Pool.AcquireTimeoutMillis)
	}
	if c.Limits.MaxQueryRows < 1 {
		return fmt.Errorf("limits.max_query_rows must be at least 1, got %d", c.Limits.MaxQueryRows)
	}
	if c.Limits.DefaultTableRows < 1 {
		return fmt.Errorf("limits.default_table_rows must be at least 1, got %d", c.Limits.DefaultTableRows)
	}
	mode := c.Security.DangerKeywordMatch
	if mode != "whole_text" && mode != "tokens" {
		return fmt.Errorf("security.danger_keyword_match must be \"whole_text\" or \"tokens\", got %q", mode)
	}
	return nil
}

// findConfigPath searches for the configuration file in standard locations.
func findConfigPath() string {
	// 1. Check environment variable
	if envPath := os.Getenv("ORACLE_DB_MCP_CONFIG"); envPath != "" {
		if fileExists(envPath) {
			return envPath
		}
	}

	// 2. Check executable directory
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		configPath := filepath.Join(exeDir, "config.yaml")
		if fileExists(configPath) {
			return configPath
		}
	}

	// 3. Check current working directory
	if cwd, err := os.Getwd(); err == nil {
		configPath := filepath.Join(cwd, "config.yaml")
		if fileExists(configPath) {
			return configPath
		}
	}

	return ""
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
