// Package markdown converts tutorial markdown into sanitized, syntax
// highlighted HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

const defaultStyle = "github"

var (
	codeBlockRe = regexp.MustCompile(`(?s)<pre><code(?: class="language-([^"]+)")?>(.*?)</code></pre>`)
	preBlockRe  = regexp.MustCompile(`(?s)<pre[ >].*?</pre>`)
	blankRunRe  = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
)

// Renderer turns markdown into HTML. It is safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// New creates a renderer with GitHub-flavoured markdown, heading anchors
// and class-based syntax highlighting.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy:    newPolicy(),
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
		style:     styles.Get(defaultStyle),
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").Matching(regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)).
		OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#.-]+$`)).OnElements("code")
	p.AllowElements("input")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	return p
}

// Render converts markdown source to HTML safe to inject into a page.
func (r *Renderer) Render(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}

	out := r.policy.Sanitize(buf.String())
	out = r.highlightCodeBlocks(out)
	return collapseBlankLines(out), nil
}

// WriteCSS writes the stylesheet matching the highlighter's classes.
func (r *Renderer) WriteCSS(w io.Writer) error {
	return r.formatter.WriteCSS(w, r.style)
}

func (r *Renderer) highlightCodeBlocks(in string) string {
	return codeBlockRe.ReplaceAllStringFunc(in, func(block string) string {
		m := codeBlockRe.FindStringSubmatch(block)
		lang, code := m[1], html.UnescapeString(m[2])

		highlighted, err := r.highlight(lang, code)
		if err != nil {
			slog.Debug("code highlighting failed, leaving block plain", "lang", lang, "error", err)
			return block
		}
		return highlighted
	})
}

// highlight uses the declared language when chroma knows it and falls back
// to content analysis otherwise.
func (r *Renderer) highlight(lang, code string) (string, error) {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}

	out, err := r.format(lexer, code)
	if err == nil {
		return out, nil
	}
	return r.format(lexers.Analyse(code), code)
}

func (r *Renderer) format(lexer chroma.Lexer, code string) (string, error) {
	if lexer == nil {
		return "", fmt.Errorf("no lexer")
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenising: %w", err)
	}
	var buf strings.Builder
	if err := r.formatter.Format(&buf, r.style, it); err != nil {
		return "", fmt.Errorf("formatting: %w", err)
	}
	return buf.String(), nil
}

// collapseBlankLines reduces runs of blank lines to a single newline outside
// <pre> blocks. Code is left untouched.
func collapseBlankLines(in string) string {
	var b strings.Builder
	last := 0
	for _, loc := range preBlockRe.FindAllStringIndex(in, -1) {
		b.WriteString(blankRunRe.ReplaceAllString(in[last:loc[0]], "\n"))
		b.WriteString(in[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(blankRunRe.ReplaceAllString(in[last:], "\n"))
	return b.String()
}
