// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/render"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options  *Options
	renderer *render.HTML
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts, renderer: render.NewHTML()}
}

// Export converts a conversation to HTML. Message bodies go through the
// sanitizing markdown renderer; everything else is escaped.
func (e *HTMLExporter) Export(conv *conversation.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	title := html.EscapeString(conv.Title)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"zh-CN\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"starmind\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt().Format(time.RFC3339))
	sb.WriteString("    <style>\n")
	sb.WriteString(pageCSS)
	sb.WriteString(render.ChromaCSS())
	sb.WriteString("    </style>\n</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	sb.WriteString("<header class=\"header\">\n")
	fmt.Fprintf(&sb, "    <h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		sb.WriteString("    <div class=\"metadata\">\n")
		fmt.Fprintf(&sb, "        <span>Created: %s</span>\n", formatTimestamp(conv.CreatedAt()))
		fmt.Fprintf(&sb, "        <span>Messages: %d</span>\n", len(conv.Messages))
		sb.WriteString("    </div>\n")
	}
	sb.WriteString("</header>\n<main class=\"conversation\">\n")

	if len(conv.Messages) == 0 {
		fmt.Fprintf(&sb, "<div class=\"message welcome\">%s</div>\n", html.EscapeString(conversation.WelcomeText))
	}
	for _, msg := range conv.Messages {
		e.renderMessage(&sb, msg)
	}

	sb.WriteString("</main>\n<footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "    <p>Exported from <strong>StarMind</strong> on %s</p>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</footer>\n</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg conversation.Message) {
	class := "assistant"
	if msg.Role == conversation.RoleUser {
		class = "user"
	}
	fmt.Fprintf(sb, "<div class=\"message %s-message\">\n", class)
	fmt.Fprintf(sb, "    <div class=\"role-label\">%s</div>\n", html.EscapeString(roleLabel(msg.Role)))
	sb.WriteString("    <div class=\"message-content\">\n")
	sb.WriteString(e.renderer.Render(msg.Content))
	sb.WriteString("    </div>\n</div>\n")
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        .dark-theme {
            --bg: #0b1021; --panel: #151b33; --text: #e6e9f5; --muted: #8a93b8;
            --user: #1f3a8a; --assistant: #1d2440; --border: #2a3358;
        }
        .light-theme {
            --bg: #f5f7fb; --panel: #ffffff; --text: #1f2430; --muted: #6a7388;
            --user: #dbe7ff; --assistant: #f2f4f8; --border: #dde2ec;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", "PingFang SC", "Microsoft YaHei", sans-serif;
            line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
        .header { padding: 24px 32px; border-bottom: 1px solid var(--border); }
        .header h1 { font-size: 24px; margin-bottom: 8px; }
        .metadata { display: flex; gap: 16px; font-size: 13px; color: var(--muted); }
        .conversation { padding: 24px 32px; display: flex; flex-direction: column; gap: 16px; }
        .message { padding: 12px 16px; border-radius: 10px; max-width: 85%; }
        .user-message { background: var(--user); align-self: flex-end; }
        .assistant-message { background: var(--assistant); align-self: flex-start; }
        .welcome { color: var(--muted); align-self: center; }
        .role-label { font-size: 12px; font-weight: 600; color: var(--muted); margin-bottom: 4px; }
        .message-content p { margin: 4px 0; }
        .message-content pre { padding: 12px; border-radius: 6px; overflow-x: auto; margin: 8px 0; }
        .message-content code { font-family: "SF Mono", Menlo, Consolas, monospace; font-size: 14px; }
        .message-content table { border-collapse: collapse; margin: 8px 0; }
        .message-content th, .message-content td { border: 1px solid var(--border); padding: 4px 8px; }
        .footer { padding: 16px 32px; font-size: 12px; color: var(--muted); border-top: 1px solid var(--border); }
`
