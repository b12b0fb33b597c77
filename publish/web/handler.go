// Package web publishes books as html pages served over http.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vbook/cache"
	"vbook/config"
	"vbook/content"
	"vbook/markup"
	"vbook/node"
	"vbook/publish"
)

// MetaCacheable turns page caching off for a document when false.
const MetaCacheable = "isCacheable"

// Handler serves books from the shelf. Requests are "/{book}/{path...}",
// root shows the library. It also implements publish.Publisher: exporting a
// book renders all its pages into the cache.
type Handler struct {
	shelf   *publish.Bookshelf
	parsers *content.Registry
	cache   cache.Cache
	cfg     *config.WebConfig
	log     *zap.Logger

	page       *template.Template
	library    *template.Template
	stylesheet []byte
}

var _ publish.Publisher = (*Handler)(nil)

// NewHandler prepares handler. Cache may be nil, pages are rendered on
// every request then.
func NewHandler(shelf *publish.Bookshelf, parsers *content.Registry, c cache.Cache, cfg *config.WebConfig, opts markup.Options, log *zap.Logger) (*Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	page, library, err := parseTemplates(cfg.PageTemplatePath)
	if err != nil {
		return nil, err
	}

	css := bytes.Clone(defaultStylesheet)
	if opts.HighlightClasses {
		hl, err := markup.HighlightCSS(opts)
		if err != nil {
			return nil, fmt.Errorf("unable to prepare highlighting stylesheet: %w", err)
		}
		css = append(css, "\n"+hl...)
	}

	return &Handler{
		shelf:      shelf,
		parsers:    parsers,
		cache:      c,
		cfg:        cfg,
		log:        log,
		page:       page,
		library:    library,
		stylesheet: css,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p := path.Clean("/" + r.URL.Path)
	switch {
	case p == "/":
		h.serveLibrary(w, r)
		return
	case len(h.cfg.StylesheetURI) > 0 && p == h.cfg.StylesheetURI:
		h.serveStylesheet(w, r)
		return
	}

	index, rel, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	book, err := h.shelf.Book(index)
	if err != nil {
		http.Error(w, fmt.Sprintf("Book '%s' not found", index), http.StatusNotFound)
		return
	}

	n, err := lookup(book, rel)
	if err != nil {
		if errors.Is(err, node.ErrUnsupportedResource) {
			http.Error(w, "Media-type not supported", http.StatusUnsupportedMediaType)
			return
		}
		h.log.Debug("Page not found", zap.String("path", p), zap.Error(err))
		http.Error(w, fmt.Sprintf("Page '%s/%s' not found", index, rel), http.StatusNotFound)
		return
	}

	if n.IsResource() {
		h.serveResource(w, r, n)
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/") {
		u := *r.URL
		u.Path = r.URL.Path + "/"
		http.Redirect(w, r, u.String(), http.StatusFound)
		return
	}
	h.servePage(w, r, n)
}

// lookup resolves request path inside the book. Hidden names and files
// making up a document are not served.
func lookup(book *node.Node, rel string) (*node.Node, error) {
	if len(rel) > 0 {
		for _, seg := range strings.Split(rel, "/") {
			if strings.HasPrefix(seg, ".") || strings.HasPrefix(seg, "_") {
				return nil, fmt.Errorf("hidden path '%s': %w", rel, node.ErrInvalidPath)
			}
		}
		if base := path.Base(rel); base == node.MetaFile || strings.HasPrefix(base, node.ContentPrefix) {
			return nil, fmt.Errorf("document file '%s': %w", rel, node.ErrInvalidPath)
		}
	}
	return book.Child(rel)
}

func (h *Handler) serveResource(w http.ResponseWriter, r *http.Request, n *node.Node) {
	f, err := os.Open(n.Path())
	if err != nil {
		h.log.Warn("Unable to open resource", zap.String("path", n.Path()), zap.Error(err))
		http.Error(w, "Resource not readable", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.log.Warn("Unable to stat resource", zap.String("path", n.Path()), zap.Error(err))
		http.Error(w, "Resource not readable", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", n.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		h.log.Debug("Unable to send resource", zap.String("path", n.Path()), zap.Error(err))
	}
}

func (h *Handler) serveStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(h.stylesheet)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(h.stylesheet)
}

func (h *Handler) serveLibrary(w http.ResponseWriter, r *http.Request) {
	values := LibraryValues{Title: h.cfg.LibraryTitle, Stylesheet: h.cfg.StylesheetURI}
	for _, index := range h.shelf.Indexes() {
		book, err := h.shelf.Book(index)
		if err != nil {
			continue
		}
		values.Books = append(values.Books, LibraryBook{Index: index, URI: pageURI(book), Name: book.DisplayName()})
	}

	var buf bytes.Buffer
	if err := h.library.Execute(&buf, values); err != nil {
		h.log.Error("Unable to render library", zap.Error(err))
		http.Error(w, "Unable to render library", http.StatusInternalServerError)
		return
	}
	h.writeHTML(w, r, buf.Bytes())
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, n *node.Node) {
	start := time.Now()
	cacheable := h.cacheable(n) && len(r.URL.RawQuery) == 0

	if cacheable {
		if data, ok := h.fromCache(n); ok {
			data = fmt.Appendf(data, "\n<!-- retrieved from cache in: %.6f seconds -->", time.Since(start).Seconds())
			h.writeHTML(w, r, data)
			return
		}
	}

	data, failed, err := h.render(r.Context(), n, r.URL.Query())
	if err != nil {
		h.log.Error("Unable to render page", zap.Stringer("node", n), zap.Error(err))
		http.Error(w, "Unable to render page", http.StatusInternalServerError)
		return
	}
	if cacheable && !failed {
		if err := h.cache.Set(n.URI(), data); err != nil {
			h.log.Warn("Unable to cache page", zap.String("uri", n.URI()), zap.Error(err))
		}
	}

	data = fmt.Appendf(data, "\n<!-- generated in: %.6f seconds -->", time.Since(start).Seconds())
	h.writeHTML(w, r, data)
}

func (h *Handler) writeHTML(w http.ResponseWriter, r *http.Request, data []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

// cacheable reports if pages of the document may be cached.
func (h *Handler) cacheable(n *node.Node) bool {
	if h.cache == nil {
		return false
	}
	m, err := n.Meta()
	if err != nil {
		return false
	}
	return m.Bool(MetaCacheable, true)
}

// fromCache returns cached page unless document changed after it was
// stored, stale entries are removed.
func (h *Handler) fromCache(n *node.Node) ([]byte, bool) {
	key := n.URI()
	data, ok, err := h.cache.Get(key)
	if err != nil {
		h.log.Warn("Unable to read cache", zap.String("uri", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	stored, _ := h.cache.ModTime(key)
	if mt, err := n.ModTime(); err != nil || mt.After(stored) {
		h.log.Debug("Cached page is stale", zap.String("uri", key), zap.Time("modified", mt), zap.Time("cached", stored))
		if err := h.cache.Delete(key); err != nil {
			h.log.Warn("Unable to delete stale cache entry", zap.String("uri", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// render produces complete page. Content failures do not fail the page,
// they are shown in place of content and reported through failed.
func (h *Handler) render(ctx context.Context, n *node.Node, query url.Values) (data []byte, failed bool, err error) {
	values, err := h.pageValues(n)
	if err != nil {
		return nil, false, err
	}

	body, err := h.parsers.Render(ctx, n, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		h.log.Warn("Unable to render content", zap.Stringer("node", n), zap.Error(err))
		values.Error = err.Error()
		failed = true
	} else {
		values.Content = template.HTML(body)
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, values); err != nil {
		return nil, false, fmt.Errorf("unable to execute page template: %w", err)
	}
	return buf.Bytes(), failed, nil
}

// ExportBook renders every cacheable page of the book into the cache.
func (h *Handler) ExportBook(ctx context.Context, index string, opts publish.Options) error {
	book, err := h.shelf.Book(index)
	if err != nil {
		return err
	}
	if h.cache == nil {
		h.log.Info("No cache configured, nothing to export", zap.String("book", index))
		return nil
	}

	count := 0
	for _, n := range book.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.Excluded(n.URI()) || !h.cacheable(n) {
			continue
		}
		data, failed, err := h.render(ctx, n, nil)
		if err != nil {
			return fmt.Errorf("unable to render '%s': %w", n.URI(), err)
		}
		if failed {
			continue
		}
		if err := h.cache.Set(n.URI(), data); err != nil {
			return fmt.Errorf("unable to cache '%s': %w", n.URI(), err)
		}
		count++
	}
	h.log.Info("Book pages cached", zap.String("book", index), zap.Int("pages", count))
	return nil
}
