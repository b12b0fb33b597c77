package web

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"slices"
	"strings"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"vbook/node"
)

//go:embed page.html.tmpl
var defaultPageTemplate string

//go:embed library.html.tmpl
var libraryTemplate string

//go:embed web-book.css
var defaultStylesheet []byte

// Favorite is a link shown on every page of a book.
type Favorite struct {
	Link    string
	Caption string
}

// PageValues are available to the page template.
type PageValues struct {
	Node        *node.Node
	Root        *node.Node
	Title       string
	Language    string
	Stylesheet  string
	Previous    *node.Node
	Next        *node.Node
	Breadcrumbs []*node.Node
	Favorites   []Favorite
	Content     template.HTML
	Error       string
	Index       int
	Copyright   string
	Modified    time.Time
}

// LibraryBook is an entry of the library page.
type LibraryBook struct {
	Index string
	URI   string
	Name  string
}

// LibraryValues are available to the library template.
type LibraryValues struct {
	Title      string
	Stylesheet string
	Books      []LibraryBook
}

func funcMap() template.FuncMap {
	fm := sprig.FuncMap()
	fm["pageURI"] = pageURI
	return fm
}

// pageURI returns link to a document page, pages always end with slash.
func pageURI(n *node.Node) string {
	uri := n.URI()
	if n.IsDocument() && !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

func parseTemplates(pagePath string) (page, library *template.Template, err error) {
	src := defaultPageTemplate
	if len(pagePath) > 0 {
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to read page template: %w", err)
		}
		src = string(data)
	}
	if page, err = template.New("page").Funcs(funcMap()).Parse(src); err != nil {
		return nil, nil, fmt.Errorf("unable to parse page template: %w", err)
	}
	if library, err = template.New("library").Funcs(funcMap()).Parse(libraryTemplate); err != nil {
		return nil, nil, fmt.Errorf("unable to parse library template: %w", err)
	}
	return page, library, nil
}

// breadcrumbs lists documents from the book down to the parent of n.
func breadcrumbs(n, root *node.Node) []*node.Node {
	if n.Path() == root.Path() {
		return nil
	}
	var res []*node.Node
	for p := n.Parent(); p != nil; p = p.Parent() {
		res = append(res, p)
		if p.Path() == root.Path() {
			break
		}
	}
	slices.Reverse(res)
	return res
}

func favorites(m *node.Meta, unknown string) []Favorite {
	var res []Favorite
	for _, v := range m.Slice("favorites") {
		f := Favorite{Link: "#", Caption: unknown}
		if fm, ok := v.(map[string]any); ok {
			if s, ok := fm["link"].(string); ok {
				f.Link = s
			}
			if s, ok := fm["caption"].(string); ok {
				f.Caption = s
			}
		}
		res = append(res, f)
	}
	return res
}

// pageValues collects everything page template shows except content.
func (h *Handler) pageValues(n *node.Node) (*PageValues, error) {
	root, err := n.Root()
	if err != nil {
		return nil, err
	}
	rootMeta, err := root.Meta()
	if err != nil {
		return nil, err
	}

	v := &PageValues{
		Node:        n,
		Root:        root,
		Title:       root.DisplayName() + ": " + n.DisplayName(),
		Language:    rootMeta.String("language", "en"),
		Stylesheet:  h.cfg.StylesheetURI,
		Previous:    n.Previous(),
		Next:        n.Next(),
		Breadcrumbs: breadcrumbs(n, root),
		Index:       n.Index(),
		Copyright:   rootMeta.String("copyright", ""),
	}
	if mt, err := n.ModTime(); err == nil {
		v.Modified = mt
	}

	v.Favorites = []Favorite{
		{Link: "/", Caption: "Library"},
		{Link: pageURI(root), Caption: "Start"},
	}
	if toc := rootMeta.String("tocPage", ""); len(toc) > 0 {
		v.Favorites = append(v.Favorites, Favorite{Link: root.URIOffset() + "/" + strings.TrimPrefix(toc, "/"), Caption: "TOC"})
	}
	v.Favorites = append(v.Favorites, favorites(rootMeta, "Unknown Root favorite")...)
	if !n.IsBook() {
		m, err := n.Meta()
		if err != nil {
			return nil, err
		}
		v.Favorites = append(v.Favorites, favorites(m, "Unknown Node favorite")...)
	}
	return v, nil
}
