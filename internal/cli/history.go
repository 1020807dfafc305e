// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/export"
	"github.com/starmind/starmind-tui/internal/render"
	"github.com/starmind/starmind-tui/internal/util"
)

const historyUsage = "history list|show|rename|delete|export ..."

// runHistory dispatches the history subcommands.
func (a *App) runHistory(ctx context.Context, cfg *config.Config, args Args) error {
	kv, persister, err := openStore(ctx, cfg.Storage, false)
	if err != nil {
		return err
	}
	defer kv.Close()

	log, closeLog := a.newLogger(cfg, false)
	defer closeLog()

	return a.history(ctx, cfg, args, persister, log)
}

// history runs one history subcommand against persister. Writes that fail
// to persist turn into an error so the command exits non-zero.
func (a *App) history(ctx context.Context, cfg *config.Config, args Args, persister conversation.Persister, log *zap.Logger) error {
	p := args.Parser
	sub := p.Subcommand()
	if sub == "" {
		sub = "list"
	}

	painter := &historyPainter{}
	store := conversation.New(conversation.Options{Persister: persister, Painter: painter, Logger: log})
	store.Load(ctx)

	switch sub {
	case "list", "ls":
		return a.historyList(store, args.JSON)
	case "show", "cat":
		conv, err := lookupConversation(store, p.Positional(1), "history show <id> [--raw]")
		if err != nil {
			return err
		}
		return a.historyShow(conv, cfg.UI.Theme, p.BoolFlag("raw"))
	case "rename", "mv":
		title := p.JoinPositional(2)
		if strings.TrimSpace(title) == "" {
			return errMissingArgument("title", "history rename <id> <title>")
		}
		conv, err := lookupConversation(store, p.Positional(1), "history rename <id> <title>")
		if err != nil {
			return err
		}
		store.Rename(ctx, conv.ID, title)
		if err := painter.err(); err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "%s %s → %s\n", okLabel.Sprint("Renamed"), idColor.Sprint(conv.ID), strings.TrimSpace(title))
		return nil
	case "delete", "rm":
		conv, err := lookupConversation(store, p.Positional(1), "history delete <id>")
		if err != nil {
			return err
		}
		store.Delete(ctx, conv.ID)
		if err := painter.err(); err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "%s %s (%s)\n", okLabel.Sprint("Deleted"), idColor.Sprint(conv.ID), conv.Title)
		return nil
	case "export":
		usage := "history export <id> [--format md|html|json] [--out DIR]"
		conv, err := lookupConversation(store, p.Positional(1), usage)
		if err != nil {
			return err
		}
		format := p.FlagOr(cfg.UI.ExportFormat, "format", "f")
		dir := p.FlagOr(cfg.UI.ExportDir, "out", "o")
		path, err := export.ToDir(&conv, format, config.ExpandHome(dir), cfg.UI.Theme != "light")
		if err != nil {
			if errors.Is(err, export.ErrUnsupportedFormat) {
				return &UsageError{Msg: err.Error(), Usage: usage}
			}
			return err
		}
		fmt.Fprintf(a.Stdout, "%s %s\n", okLabel.Sprint("Exported"), path)
		return nil
	default:
		return &UsageError{Msg: "unknown history subcommand: " + sub, Usage: historyUsage}
	}
}

// historyPainter discards painting; the history commands print their own
// output. It keeps the last error status the store reported.
type historyPainter struct {
	failure string
}

func (p *historyPainter) ClearMessages()                                   {}
func (p *historyPainter) PaintWelcome(string)                              {}
func (p *historyPainter) PaintMessage(conversation.Message)                {}
func (p *historyPainter) PaintHistory([]conversation.Conversation, string) {}

func (p *historyPainter) SetStatus(text string, isError bool) {
	if isError {
		p.failure = text
	}
}

func (p *historyPainter) err() error {
	if p.failure == "" {
		return nil
	}
	return errors.New(p.failure)
}

// lookupConversation resolves id against the loaded store.
func lookupConversation(store *conversation.Store, id, usage string) (conversation.Conversation, error) {
	if id == "" {
		return conversation.Conversation{}, errMissingArgument("conversation id", usage)
	}
	conv, ok := store.Get(id)
	if !ok {
		return conversation.Conversation{}, &NotFoundError{Resource: "conversation", ID: id}
	}
	return conv, nil
}

func (a *App) historyList(store *conversation.Store, jsonMode bool) error {
	convs := store.Conversations()
	current := store.CurrentID()

	if jsonMode {
		entries := make([]HistoryEntry, 0, len(convs))
		for _, c := range convs {
			entries = append(entries, HistoryEntry{
				ID:        c.ID,
				Title:     c.Title,
				Messages:  len(c.Messages),
				CreatedAt: c.CreatedAt().UTC(),
				Current:   c.ID == current,
			})
		}
		return NewJSONResponse("history list", entries).Write(a.Stdout)
	}

	if len(convs) == 0 {
		fmt.Fprintln(a.Stdout, dim.Sprint("No saved conversations."))
		return nil
	}

	fmt.Fprintln(a.Stdout, heading.Sprintf("%d conversation(s)", len(convs)))
	for _, c := range convs {
		mark := " "
		if c.ID == current {
			mark = marker.Sprint("●")
		}
		title := util.PadWidth(util.TruncateWidth(util.SingleLine(c.Title), 30), 30)
		fmt.Fprintf(a.Stdout, "%s %s  %s  %s\n",
			mark,
			idColor.Sprint(c.ID),
			title,
			dim.Sprintf("%3d msgs  %s", len(c.Messages), c.CreatedAt().Format("2006-01-02 15:04")))
	}
	return nil
}

func (a *App) historyShow(conv conversation.Conversation, theme string, raw bool) error {
	if raw {
		fmt.Fprintf(a.Stdout, "# %s (%s)\n", conv.Title, conv.ID)
		for _, m := range conv.Messages {
			fmt.Fprintf(a.Stdout, "\n[%s]\n%s\n", m.Role, m.Content)
		}
		return nil
	}

	painter := &replPainter{out: a.Stdout, render: render.NewTerminal(theme).Func(TerminalWidth())}
	fmt.Fprintln(a.Stdout, heading.Sprint(conv.Title)+" "+dim.Sprint(conv.ID))
	if len(conv.Messages) == 0 {
		painter.PaintWelcome(conversation.WelcomeText)
		return nil
	}
	for _, m := range conv.Messages {
		painter.PaintMessage(m)
	}
	return nil
}
