// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/starmind/starmind-tui/internal/config"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is a top-level starmind command.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdServe
	CmdHistory
	CmdSnow
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdChat:    "chat",
	CmdServe:   "serve",
	CmdHistory: "history",
	CmdSnow:    "snow",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	return commandNames[c]
}

// Args holds the parsed command line.
type Args struct {
	// Global flags
	ConfigPath string // --config
	Server     string // --server, overrides server.base_url
	JSON       bool   // --json
	Verbose    bool   // -v, --verbose

	// Command-specific arguments after the command name
	Parser *ArgParser
}

// Flags that never take a value, across all commands.
var boolFlagNames = []string{"ephemeral", "raw", "json", "force", "mock", "no-auth"}

const usageText = `starmind - StarMind chat client

Usage:
  starmind [tui] [--ephemeral]              Full-screen chat client (default)
  starmind chat [--ephemeral]               Line-oriented chat
  starmind serve [--addr A] [--provider P]  Run the StarMind backend
             [--web-root DIR] [--no-auth]
  starmind history list                     List saved conversations
  starmind history show <id> [--raw]        Print a conversation
  starmind history rename <id> <title>      Rename a conversation
  starmind history delete <id>              Delete a conversation
  starmind history export <id> [--format md|html|json] [--out DIR]
  starmind snow                             Let it snow
  starmind config show|path|init [--force]  Inspect or create the config file
  starmind config get <key>
  starmind config set <key> <value>
  starmind version                          Print version information

Global flags:
  --config PATH    Use an alternate config.toml
  --server URL     Override server.base_url
  --json           JSON output (history list, version, config show)
  -v, --verbose    Debug logging

Chat commands (starmind chat):
  /new  /list  /switch <n|id>  /rename <title>  /delete [id]
  /clear  /logout  /help  /quit

Environment:
  STARMIND_HOME            Config directory (default ~/.starmind)
  STARMIND_SERVER_URL      Backend URL
  STARMIND_API_KEY         Upstream key for serve with openai_compat
  NO_COLOR                 Disable colors

Version: %s
`

// =============================================================================
// PARSING
// =============================================================================

// Parse splits argv (without the program name) into a command and args.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		args.Parser = NewArgParser(nil, boolFlagNames...)
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	rest := remaining[1:]
	args.Parser = NewArgParser(rest, boolFlagNames...)

	switch name {
	case "tui":
		return CmdTUI, args, nil
	case "chat", "repl":
		return CmdChat, args, nil
	case "serve", "server":
		return CmdServe, args, nil
	case "history", "hist":
		return CmdHistory, args, nil
	case "snow", "snowfall":
		return CmdSnow, args, nil
	case "config", "cfg":
		return CmdConfig, args, nil
	case "version", "--version":
		return CmdVersion, args, nil
	case "help", "-h", "--help":
		return CmdHelp, args, nil
	}

	// Flags intended for the TUI may come first: "starmind --ephemeral"
	if strings.HasPrefix(name, "-") {
		args.Parser = NewArgParser(remaining, boolFlagNames...)
		return CmdTUI, args, nil
	}
	return CmdHelp, args, &UsageError{Msg: "unknown command: " + name}
}

// parseGlobalFlags extracts flags accepted by every command.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var args Args
	var remaining []string

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--config" || arg == "--server":
			if i+1 >= len(argv) {
				return nil, args, &UsageError{Msg: arg + " needs a value"}
			}
			i++
			if arg == "--config" {
				args.ConfigPath = argv[i]
			} else {
				args.Server = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--server="):
			args.Server = strings.TrimPrefix(arg, "--server=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}

// =============================================================================
// APP
// =============================================================================

// App runs starmind commands. The zero value is not usable; use NewApp.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// loadConfig reads the configuration; tests replace it.
	loadConfig func(args Args) (*config.Config, error)
}

// NewApp returns an App wired to the process streams.
func NewApp() *App {
	return &App{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Stdin:      os.Stdin,
		loadConfig: loadConfig,
	}
}

// Run executes argv and returns the process exit code.
func (a *App) Run(ctx context.Context, argv []string) int {
	configureColor()

	cmd, args, err := Parse(argv)
	if err != nil {
		DisplayError(a.Stderr, cmd.String(), err, args.JSON)
		return ExitCode(err)
	}

	err = a.dispatch(ctx, cmd, args)
	if err != nil {
		DisplayError(a.Stderr, cmd.String(), err, args.JSON)
	}
	return ExitCode(err)
}

func (a *App) dispatch(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdHelp:
		fmt.Fprintf(a.Stdout, usageText, Version)
		return nil
	case CmdVersion:
		return a.runVersion(args)
	case CmdSnow:
		return a.runSnow(ctx, args)
	case CmdConfig:
		return a.runConfig(args)
	}

	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	config.SetGlobal(cfg)

	switch cmd {
	case CmdTUI:
		return a.runTUI(ctx, cfg, args)
	case CmdChat:
		return a.runChat(ctx, cfg, args)
	case CmdServe:
		return a.runServe(ctx, cfg, args)
	case CmdHistory:
		return a.runHistory(ctx, cfg, args)
	}
	return &UsageError{Msg: "unknown command"}
}

// =============================================================================
// VERSION
// =============================================================================

func (a *App) runVersion(args Args) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return NewJSONResponse("version", data).Write(a.Stdout)
	}
	fmt.Fprintf(a.Stdout, "starmind %s\n", data.Version)
	fmt.Fprintf(a.Stdout, "  Git commit: %s\n", data.GitCommit)
	fmt.Fprintf(a.Stdout, "  Build date: %s\n", data.BuildDate)
	fmt.Fprintf(a.Stdout, "  Go:         %s (%s)\n", data.GoVersion, data.Platform)
	return nil
}
