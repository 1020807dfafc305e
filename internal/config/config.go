// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for StarMind.
//
// Configuration is layered, later layers winning:
//   - Built-in defaults
//   - ~/.starmind/config.toml (STARMIND_HOME moves the directory)
//   - .env in the working directory
//   - STARMIND_* environment variables
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/starmind/starmind-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete StarMind configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" json:"server"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Log       LogConfig       `toml:"log" json:"log"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	Serve     ServeConfig     `toml:"serve" json:"serve"`
}

// ServerConfig points the client at a StarMind backend.
type ServerConfig struct {
	BaseURL        string `toml:"base_url" json:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

// StorageConfig selects where conversation history lives.
type StorageConfig struct {
	// Backend is one of file, bolt, sqlite, redis, memory.
	Backend  string `toml:"backend" json:"backend"`
	Path     string `toml:"path" json:"path"`
	RedisURL string `toml:"redis_url" json:"redis_url"`
	Prefix   string `toml:"prefix" json:"prefix"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme"` // auto, dark, light
	Snow           bool   `toml:"snow" json:"snow"`
	ConfirmNewChat bool   `toml:"confirm_new_chat" json:"confirm_new_chat"`
	ExportFormat   string `toml:"export_format" json:"export_format"` // md, html, json
	ExportDir      string `toml:"export_dir" json:"export_dir"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string `toml:"path" json:"path"`
	Level      string `toml:"level" json:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled" json:"enabled"`
	TracePath    string `toml:"trace_path" json:"trace_path"`
	OTLPEndpoint string `toml:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `toml:"service_name" json:"service_name"`
}

// ServeConfig configures the bundled StarMind backend.
type ServeConfig struct {
	Addr            string    `toml:"addr" json:"addr"`
	WebRoot         string    `toml:"web_root" json:"web_root"`
	IndexFile       string    `toml:"index_file" json:"index_file"`
	AuthEnabled     bool      `toml:"auth_enabled" json:"auth_enabled"`
	User            string    `toml:"user" json:"user"`
	Password        string    `toml:"password" json:"password"`
	TokenTTLSeconds int       `toml:"token_ttl_seconds" json:"token_ttl_seconds"`
	JWTSecret       string    `toml:"jwt_secret" json:"jwt_secret"`
	TOTPSecret      string    `toml:"totp_secret" json:"totp_secret"`
	LLM             LLMConfig `toml:"llm" json:"llm"`
}

// LLMConfig selects the upstream model provider for the backend.
type LLMConfig struct {
	// Provider is mock or openai_compat.
	Provider           string `toml:"provider" json:"provider"`
	APIBase            string `toml:"api_base" json:"api_base"`
	APIKey             string `toml:"api_key" json:"api_key"`
	Model              string `toml:"model" json:"model"`
	TimeoutSeconds     int    `toml:"timeout_seconds" json:"timeout_seconds"`
	SystemPrompt       string `toml:"system_prompt" json:"system_prompt"`
	MaxHistoryMessages int    `toml:"max_history_messages" json:"max_history_messages"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with every field set to its default.
// Paths are left empty and resolved against Dir by fillDefaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://127.0.0.1:8090",
			TimeoutSeconds: 120,
		},
		Storage: StorageConfig{
			Backend: "file",
			Prefix:  "starmind:",
		},
		UI: UIConfig{
			Theme:          "auto",
			ConfirmNewChat: true,
			ExportFormat:   "md",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "starmind",
		},
		Serve: ServeConfig{
			Addr:            "0.0.0.0:8090",
			IndexFile:       "login.html",
			AuthEnabled:     true,
			User:            "admin",
			Password:        "admin",
			TokenTTLSeconds: 86400,
			LLM: LLMConfig{
				Provider:           "openai_compat",
				APIBase:            "https://api.deepseek.com/v1",
				Model:              "deepseek-chat",
				TimeoutSeconds:     60,
				SystemPrompt:       "You are StarMind, a helpful assistant.",
				MaxHistoryMessages: 20,
			},
		},
	}
}

// fillDefaults resolves empty paths under the config directory.
func fillDefaults(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	if cfg.Storage.Path == "" {
		switch strings.ToLower(cfg.Storage.Backend) {
		case "bolt":
			cfg.Storage.Path = filepath.Join(dir, "state.bolt")
		case "sqlite":
			cfg.Storage.Path = filepath.Join(dir, "state.db")
		default:
			cfg.Storage.Path = filepath.Join(dir, "state.json")
		}
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(dir, "logs", "starmind.log")
	}
	if cfg.Telemetry.TracePath == "" {
		cfg.Telemetry.TracePath = filepath.Join(dir, "logs", "traces.json")
	}
	if cfg.UI.ExportDir == "" {
		cfg.UI.ExportDir = filepath.Join(dir, "exports")
	}

	cfg.Storage.Path = ExpandHome(cfg.Storage.Path)
	cfg.Log.Path = ExpandHome(cfg.Log.Path)
	cfg.Telemetry.TracePath = ExpandHome(cfg.Telemetry.TracePath)
	cfg.UI.ExportDir = ExpandHome(cfg.UI.ExportDir)
	return nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the StarMind configuration directory, ~/.starmind unless
// STARMIND_HOME is set.
func Dir() (string, error) {
	if home := os.Getenv("STARMIND_HOME"); home != "" {
		return ExpandHome(home), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".starmind"), nil
}

// Path returns the path to config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir creates the configuration directory.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads config.toml from Dir, then applies .env and environment
// overrides. A missing file yields defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load with an explicit file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal
	_ = godotenv.Load()
	cfg.ApplyEnvOverrides()

	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep their
// current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return ValidationError{Field: keys[0], Message: "unknown key (" + strings.Join(keys, ", ") + ")"}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path atomically with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# StarMind configuration file\n")
	buf.WriteString("# Values can be overridden with STARMIND_* environment variables.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validBackends  = map[string]bool{"file": true, "bolt": true, "sqlite": true, "redis": true, "memory": true}
	validThemes    = map[string]bool{"auto": true, "dark": true, "light": true}
	validFormats   = map[string]bool{"md": true, "html": true, "json": true}
	validProviders = map[string]bool{"mock": true, "openai_compat": true}
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks field values and returns ValidateErrors when any are bad.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("server.base_url", "must be an absolute http(s) URL, got %q", c.Server.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "unsupported scheme %q", u.Scheme)
	}
	if c.Server.TimeoutSeconds < 0 {
		add("server.timeout_seconds", "must be >= 0")
	}

	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		add("storage.backend", "invalid backend %q, must be one of: file, bolt, sqlite, redis, memory", c.Storage.Backend)
	}
	if strings.EqualFold(c.Storage.Backend, "redis") && c.Storage.RedisURL == "" {
		add("storage.redis_url", "required when storage.backend is redis")
	}

	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme %q, must be one of: auto, dark, light", c.UI.Theme)
	}
	if !validFormats[strings.ToLower(c.UI.ExportFormat)] {
		add("ui.export_format", "invalid format %q, must be one of: md, html, json", c.UI.ExportFormat)
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		add("log", "rotation limits must be >= 0")
	}

	if !validProviders[c.Serve.LLM.Provider] {
		add("serve.llm.provider", "invalid provider %q, must be one of: mock, openai_compat", c.Serve.LLM.Provider)
	}
	if c.Serve.LLM.TimeoutSeconds < 0 {
		add("serve.llm.timeout_seconds", "must be >= 0")
	}
	if c.Serve.LLM.MaxHistoryMessages < 0 {
		add("serve.llm.max_history_messages", "must be >= 0")
	}
	if c.Serve.TokenTTLSeconds < 0 {
		add("serve.token_ttl_seconds", "must be >= 0")
	}
	if c.Serve.AuthEnabled && c.Serve.User == "" {
		add("serve.user", "required when serve.auth_enabled is true")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DEBUG OUTPUT
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for _, s := range []*string{&safe.Serve.Password, &safe.Serve.JWTSecret, &safe.Serve.TOTPSecret, &safe.Serve.LLM.APIKey} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	if safe.Storage.RedisURL != "" {
		if u, err := url.Parse(safe.Storage.RedisURL); err == nil && u.User != nil {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
			safe.Storage.RedisURL = u.String()
		}
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the process configuration, loading it on first use.
// A load failure falls back to defaults.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load()
		if err != nil {
			loaded = Default()
			_ = fillDefaults(loaded)
		}
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal replaces the process configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the process configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
}
