package epub

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"vbook/markup"
)

//go:embed epub-book.css
var defaultStylesheet []byte

// writeStylesheet puts book stylesheet into the package together with files
// it references.
func (e *export) writeStylesheet() error {
	data, base := defaultStylesheet, ""
	if len(e.cfg.StylesheetPath) > 0 {
		var err error
		if data, err = os.ReadFile(e.cfg.StylesheetPath); err != nil {
			return fmt.Errorf("unable to read stylesheet: %w", err)
		}
		base = filepath.Dir(e.cfg.StylesheetPath)
	}

	if len(base) > 0 {
		for _, ref := range stylesheetRefs(data) {
			if err := e.copyAsset(base, ref); err != nil {
				return err
			}
		}
	}

	if e.opts.HighlightClasses {
		hl, err := markup.HighlightCSS(e.opts)
		if err != nil {
			return err
		}
		data = append(append(bytes.Clone(data), '\n'), hl...)
	}
	return os.WriteFile(filepath.Join(e.oebps, filepath.FromSlash(stylesheetName)), data, 0644)
}

func (e *export) copyAsset(base, ref string) error {
	clean := path.Clean(ref)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		e.log.Warn("Stylesheet reference outside of its directory ignored", zap.String("ref", ref))
		return nil
	}
	from := filepath.Join(base, filepath.FromSlash(clean))
	if _, err := os.Stat(from); err != nil {
		e.log.Warn("Stylesheet reference not found", zap.String("ref", ref), zap.Error(err))
		return nil
	}

	href := path.Join(path.Dir(stylesheetName), clean)
	for _, a := range e.assets {
		if a.href == href {
			return nil
		}
	}
	to := filepath.Join(e.oebps, filepath.FromSlash(href))
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	if err := copyFile(from, to); err != nil {
		return fmt.Errorf("unable to copy stylesheet reference '%s': %w", ref, err)
	}

	mt, ok := e.shelf.Tree().Types().TypeOf(clean)
	if !ok {
		mt = "application/octet-stream"
	}
	e.assets = append(e.assets, item{id: itemID(href), href: href, mediaType: mt})
	e.log.Debug("Stylesheet reference copied", zap.String("href", href))
	return nil
}

// stylesheetRefs lists local files referenced with url() in the stylesheet.
func stylesheetRefs(data []byte) []string {
	var refs []string
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if len(ref) == 0 || strings.HasPrefix(ref, "#") || strings.Contains(ref, ":") {
			return
		}
		ref, _, _ = strings.Cut(ref, "#")
		ref, _, _ = strings.Cut(ref, "?")
		refs = append(refs, ref)
	}

	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	inURL := false
	for {
		tt, text := l.Next()
		switch tt {
		case css.ErrorToken:
			return refs
		case css.URLToken:
			s := strings.TrimSuffix(strings.TrimPrefix(string(text), "url("), ")")
			add(unquote(strings.TrimSpace(s)))
		case css.FunctionToken:
			inURL = strings.EqualFold(string(text), "url(")
		case css.StringToken:
			if inURL {
				add(unquote(string(text)))
				inURL = false
			}
		case css.WhitespaceToken:
		default:
			inURL = false
		}
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
