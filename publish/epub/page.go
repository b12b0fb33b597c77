package epub

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"vbook/node"
)

//go:embed epub-book.html.tmpl
var defaultPageTemplate string

const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// PageValues are available to the page template.
type PageValues struct {
	Node       *node.Node
	Root       *node.Node
	Title      string
	Language   string
	Stylesheet string
	Content    template.HTML
}

func parsePageTemplate(pagePath string) (*template.Template, error) {
	src := defaultPageTemplate
	if len(pagePath) > 0 {
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("unable to read page template: %w", err)
		}
		src = string(data)
	}
	page, err := template.New("page").Funcs(sprig.FuncMap()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page template: %w", err)
	}
	return page, nil
}

// renderPage produces XHTML page of a document with links pointing inside
// of the book.
func (e *export) renderPage(it item) ([]byte, error) {
	n := it.node
	body, err := e.parsers.Render(e.ctx, n, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to render '%s': %w", n.URI(), err)
	}

	dir := path.Dir(it.href)
	values := PageValues{
		Node:       n,
		Root:       e.book,
		Title:      e.title + ": " + n.DisplayName(),
		Language:   e.language,
		Stylesheet: relHref(dir, stylesheetName),
		Content:    template.HTML(body),
	}
	if n.IsBook() {
		values.Title = e.title
	}

	var buf bytes.Buffer
	if err := e.page.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("unable to execute page template for '%s': %w", n.URI(), err)
	}

	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page '%s': %w", n.URI(), err)
	}
	for _, attr := range []string{"href", "src"} {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			link, _ := s.Attr(attr)
			if rewritten, ok := e.rewriteLink(dir, link); ok {
				s.SetAttr(attr, rewritten)
			}
		})
	}

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize page '%s': %w", n.URI(), err)
	}
	return []byte(xmlDeclaration + out), nil
}

// rewriteLink turns absolute link to a node of the book into a link relative
// to the page directory. Other links are left alone.
func (e *export) rewriteLink(dir, link string) (string, bool) {
	if !strings.HasPrefix(link, "/") || strings.HasPrefix(link, "//") {
		return "", false
	}
	target, fragment, _ := strings.Cut(link, "#")
	target, _, _ = strings.Cut(target, "?")

	offset := e.book.URIOffset()
	if len(offset) > 0 {
		if target != offset && !strings.HasPrefix(target, offset+"/") {
			return "", false
		}
		target = strings.TrimPrefix(target, offset)
	}

	href, ok := e.hrefs[strings.Trim(target, "/")]
	if !ok {
		e.log.Warn("Link target is not part of the export", zap.String("link", link))
		return "", false
	}
	res := relHref(dir, href)
	if len(fragment) > 0 {
		res += "#" + fragment
	}
	return res, true
}

// relHref returns slash separated path to target from directory dir, both
// relative to the package root.
func relHref(dir, target string) string {
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}
