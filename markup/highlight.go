package markup

import (
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"go.uber.org/zap"
)

// codeTags are elements rendered as highlighted source code. Tag name is the
// default language.
var codeTags = []string{
	"highlight", "code",
	"php", "go", "cpp", "c", "java", "js", "javascript", "ts", "python",
	"bash", "shell", "sql", "html", "css", "json", "yaml", "xml", "mermaid",
}

type codeElement struct{}

func (codeElement) language(el *Element) string {
	return strings.ToLower(el.Attr("language", el.Name))
}

func (c *codeElement) Start(_ *Context, el *Element) (string, error) {
	el.Capture()
	var sb strings.Builder
	if caption := el.Attr("caption", ""); len(caption) > 0 {
		sb.WriteString("\n<em>" + html.EscapeString(caption) + "</em>")
	}
	sb.WriteString("\n<pre><code class=\"language-" + html.EscapeString(c.language(el)) + "\">")
	return sb.String(), nil
}

func (*codeElement) Data(_ *Context, _ *Element, data string) (string, error) {
	return data, nil
}

func (c *codeElement) End(pc *Context, el *Element) (string, error) {
	code := dedent(strings.TrimRight(strings.TrimLeft(el.Captured(), "\n\r\x00\x0B"), " \t\r\n\x00\x0B"))
	out, err := Highlight(code, c.language(el), pc.Opts)
	if err != nil {
		pc.Log.Debug("Unable to highlight, code escaped", zap.String("language", c.language(el)), zap.Error(err))
		out = html.EscapeString(code)
	}
	return out + "</code></pre>", nil
}

// Highlight returns html for code in language, it escapes code when language
// is not known.
func Highlight(code, language string, opts Options) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		return html.EscapeString(code), nil
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}
	f := chromahtml.New(
		chromahtml.WithClasses(opts.HighlightClasses),
		chromahtml.PreventSurroundingPre(true),
		chromahtml.TabWidth(opts.TabWidth),
	)
	var sb strings.Builder
	if err := f.Format(&sb, styles.Get(opts.HighlightStyle), it); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// HighlightCSS returns stylesheet for class based highlighting.
func HighlightCSS(opts Options) (string, error) {
	f := chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(opts.TabWidth))
	var sb strings.Builder
	if err := f.WriteCSS(&sb, styles.Get(opts.HighlightStyle)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// dedent removes indentation common to all non-blank lines.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := ""
	first := true
	for _, l := range lines {
		if len(strings.TrimSpace(l)) == 0 {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if len(prefix) == 0 {
		return s
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(lines, "\n")
}
