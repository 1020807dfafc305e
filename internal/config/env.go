// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"strconv"
	"strings"
)

// envOverride binds one environment variable to one field.
type envOverride struct {
	name  string
	apply func(c *Config, v string)
}

var envOverrides = []envOverride{
	{"STARMIND_SERVER_URL", func(c *Config, v string) { c.Server.BaseURL = v }},
	{"STARMIND_STORAGE_BACKEND", func(c *Config, v string) { c.Storage.Backend = v }},
	{"STARMIND_STORAGE_PATH", func(c *Config, v string) { c.Storage.Path = v }},
	{"STARMIND_REDIS_URL", func(c *Config, v string) { c.Storage.RedisURL = v }},
	{"STARMIND_THEME", func(c *Config, v string) { c.UI.Theme = v }},
	{"STARMIND_SNOW", func(c *Config, v string) { c.UI.Snow = parseBool(v) }},
	{"STARMIND_LOG_LEVEL", func(c *Config, v string) { c.Log.Level = v }},
	{"STARMIND_LOG_PATH", func(c *Config, v string) { c.Log.Path = v }},
	{"STARMIND_TELEMETRY", func(c *Config, v string) { c.Telemetry.Enabled = parseBool(v) }},
	{"STARMIND_OTLP_ENDPOINT", func(c *Config, v string) { c.Telemetry.OTLPEndpoint = v }},
	{"STARMIND_SERVE_ADDR", func(c *Config, v string) { c.Serve.Addr = v }},
	{"STARMIND_WEB_ROOT", func(c *Config, v string) { c.Serve.WebRoot = v }},
	{"STARMIND_AUTH_USER", func(c *Config, v string) { c.Serve.User = v }},
	{"STARMIND_AUTH_PASSWORD", func(c *Config, v string) { c.Serve.Password = v }},
	{"STARMIND_JWT_SECRET", func(c *Config, v string) { c.Serve.JWTSecret = v }},
	{"STARMIND_TOTP_SECRET", func(c *Config, v string) { c.Serve.TOTPSecret = v }},
	{"STARMIND_LLM_PROVIDER", func(c *Config, v string) { c.Serve.LLM.Provider = v }},
	{"STARMIND_LLM_API_BASE", func(c *Config, v string) { c.Serve.LLM.APIBase = v }},
	{"STARMIND_LLM_MODEL", func(c *Config, v string) { c.Serve.LLM.Model = v }},
	{"STARMIND_API_KEY", func(c *Config, v string) { c.Serve.LLM.APIKey = v }},
	{"STARMIND_TOKEN_TTL_SECONDS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serve.TokenTTLSeconds = n
		}
	}},
}

// ApplyEnvOverrides applies STARMIND_* environment variables. Empty
// variables are ignored.
//
// Recognized variables:
//   - STARMIND_SERVER_URL: server.base_url
//   - STARMIND_STORAGE_BACKEND, STARMIND_STORAGE_PATH, STARMIND_REDIS_URL
//   - STARMIND_THEME, STARMIND_SNOW
//   - STARMIND_LOG_LEVEL, STARMIND_LOG_PATH
//   - STARMIND_TELEMETRY, STARMIND_OTLP_ENDPOINT
//   - STARMIND_SERVE_ADDR, STARMIND_WEB_ROOT, STARMIND_AUTH_USER, STARMIND_AUTH_PASSWORD
//   - STARMIND_JWT_SECRET, STARMIND_TOTP_SECRET, STARMIND_TOKEN_TTL_SECONDS
//   - STARMIND_LLM_PROVIDER, STARMIND_LLM_API_BASE, STARMIND_LLM_MODEL, STARMIND_API_KEY
func (c *Config) ApplyEnvOverrides() {
	for _, o := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			o.apply(c, v)
		}
	}
}

// EnvNames lists every recognized environment variable.
func EnvNames() []string {
	names := make([]string, len(envOverrides))
	for i, o := range envOverrides {
		names[i] = o.name
	}
	return names
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
