// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/starmind/starmind-tui/internal/config"
)

const configUsage = "config show|path|init [--force]|get <key>|set <key> <value>|keys"

// runConfig handles the config subcommands.
func (a *App) runConfig(args Args) error {
	p := args.Parser
	path, err := configPath(args)
	if err != nil {
		return err
	}

	switch sub := p.Subcommand(); sub {
	case "", "show":
		cfg, err := a.loadConfig(args)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config show", json.RawMessage(cfg.String())).Write(a.Stdout)
		}
		fmt.Fprintln(a.Stdout, dim.Sprint("# "+path))
		fmt.Fprintln(a.Stdout, cfg.String())
		return nil

	case "path":
		fmt.Fprintln(a.Stdout, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil && !p.BoolFlag("force") {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "%s %s\n", okLabel.Sprint("Wrote"), path)
		return nil

	case "get":
		key := p.Positional(1)
		if key == "" {
			return errMissingArgument("key", "config get <key>")
		}
		cfg, err := a.loadConfig(args)
		if err != nil {
			return err
		}
		value, err := cfg.Get(key)
		if err != nil {
			return &UsageError{Msg: err.Error()}
		}
		if isSecretKey(key) && fmt.Sprint(value) != "" {
			value = "[REDACTED]"
		}
		fmt.Fprintln(a.Stdout, value)
		return nil

	case "set":
		key, value := p.Positional(1), p.JoinPositional(2)
		if key == "" || p.PositionalCount() < 3 {
			return errMissingArgument("key and value", "config set <key> <value>")
		}
		return a.configSet(path, key, value)

	case "keys":
		fmt.Fprintln(a.Stdout, strings.Join(config.Keys(), "\n"))
		return nil

	default:
		return &UsageError{Msg: "unknown config subcommand: " + sub, Usage: configUsage}
	}
}

// configSet edits the file itself: defaults plus what the file holds,
// without environment overrides or resolved paths.
func (a *App) configSet(path, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	}
	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Msg: err.Error(), Usage: "config set <key> <value>"}
	}
	if err := cfg.Validate(); err != nil {
		return &UsageError{Msg: err.Error()}
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "%s %s\n", okLabel.Sprint("Set"), key)
	return nil
}

func isSecretKey(key string) bool {
	switch key {
	case "serve.password", "serve.jwt_secret", "serve.totp_secret", "serve.llm.api_key":
		return true
	}
	return false
}
