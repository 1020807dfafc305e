// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	gmutil "github.com/yuin/goldmark/util"
)

// CodeStyle is the chroma style used for highlighted code in HTML output.
const CodeStyle = "monokai"

// =============================================================================
// HTML RENDERER
// =============================================================================

// HTML renders markdown to sanitized HTML: GitHub-flavored markdown with
// hard line breaks, fenced code highlighted with chroma classes, and the
// result filtered through a bluemonday UGC policy.
type HTML struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTML creates an HTML renderer.
func NewHTML() *HTML {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			// Raw HTML passes through goldmark and is filtered by the policy
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(gmutil.Prioritized(&codeBlockRenderer{}, 100)),
		),
	)
	return &HTML{md: md, policy: Policy()}
}

// Render converts markdown to safe HTML. On conversion failure the text
// is escaped and line breaks become <br/>.
func (h *HTML) Render(content string) string {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(content), &buf); err != nil {
		return EscapeFallback(content)
	}
	return h.policy.Sanitize(buf.String())
}

// Func returns Render as a Func.
func (h *HTML) Func() Func {
	return h.Render
}

var chromaClass = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// Policy returns the sanitizer: bluemonday's UGC policy plus the class
// attributes chroma emits on code blocks.
func Policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(chromaClass).OnElements("span", "pre", "code")
	return p
}

// EscapeFallback escapes & and < and turns newlines into <br/>.
func EscapeFallback(content string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", "\n", "<br/>")
	return r.Replace(content)
}

// ChromaCSS returns the stylesheet for the classes emitted by Render.
func ChromaCSS() string {
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&buf, codeStyle()); err != nil {
		return ""
	}
	return buf.String()
}

func codeStyle() *chroma.Style {
	style := chromaStyles.Get(CodeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}
	return style
}

// =============================================================================
// FENCED CODE
// =============================================================================

// codeBlockRenderer highlights fenced code blocks with chroma.
type codeBlockRenderer struct{}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeBlockRenderer) renderFencedCode(w gmutil.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Analyse(code.String())
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.String())
	if err == nil {
		err = chromahtml.New(chromahtml.WithClasses(true)).Format(w, codeStyle(), iterator)
	}
	if err != nil {
		// Plain escaped block
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.WriteString(strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}
