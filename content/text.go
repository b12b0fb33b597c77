package content

import (
	"bytes"
	"context"
	"fmt"
	"html"
	htmltemplate "html/template"
	"net/url"
	"os"
	"path/filepath"

	sprig "github.com/go-task/slim-sprig/v3"

	"vbook/node"
)

// Text renders plain text as preformatted block.
type Text struct{}

func (Text) Render(ctx context.Context, n *node.Node, _ url.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.ReadFile(n.ContentFile())
	if err != nil {
		return "", fmt.Errorf("unable to read content file: %w", err)
	}
	return `<pre class="text">` + html.EscapeString(string(src)) + `</pre>`, nil
}

func (Text) ContentType() string {
	return "text/plain"
}

// TemplateValues are available to content templates.
type TemplateValues struct {
	Node  *node.Node
	Meta  map[string]any
	Query url.Values
}

// Template executes html/template content with sprig functions.
type Template struct{}

func (*Template) Render(ctx context.Context, n *node.Node, query url.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.ReadFile(n.ContentFile())
	if err != nil {
		return "", fmt.Errorf("unable to read content file: %w", err)
	}
	tmpl, err := htmltemplate.New(filepath.Base(n.ContentFile())).Funcs(sprig.FuncMap()).Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("unable to parse content template: %w", err)
	}

	values := TemplateValues{Node: n, Query: query, Meta: map[string]any{}}
	if m, err := n.Meta(); err == nil {
		values.Meta = m.Data()
	}
	if values.Query == nil {
		values.Query = url.Values{}
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to execute content template: %w", err)
	}
	return buf.String(), nil
}

func (*Template) ContentType() string {
	return "text/html"
}
