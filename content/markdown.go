package content

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"vbook/markup"
	"vbook/node"
)

// Markdown renders CommonMark with GitHub extensions and footnotes, code
// blocks are highlighted the same way markup code elements are.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown(opts markup.Options) *Markdown {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(opts.HighlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(opts.HighlightClasses),
					chromahtml.TabWidth(opts.TabWidth),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
	return &Markdown{md: md}
}

func (m *Markdown) Render(ctx context.Context, n *node.Node, _ url.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.ReadFile(n.ContentFile())
	if err != nil {
		return "", fmt.Errorf("unable to read content file: %w", err)
	}
	return m.Convert(src)
}

// Convert renders markdown source.
func (m *Markdown) Convert(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("unable to convert markdown: %w", err)
	}
	return buf.String(), nil
}

func (*Markdown) ContentType() string {
	return "text/html"
}
