// Package content renders document content files into html fragments. A
// parser is selected by the extension of the document content file.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"vbook/config"
	"vbook/markup"
	"vbook/node"
)

// ErrNoParser is returned for content files nobody can render.
var ErrNoParser = errors.New("no parser for content file")

// Parser renders content of a document.
type Parser interface {
	// Render returns html fragment for document n. Query is the request
	// query, empty when not rendering for the web.
	Render(ctx context.Context, n *node.Node, query url.Values) (string, error)
	// ContentType of the rendered fragment.
	ContentType() string
}

// Registry maps content file extensions to parsers. It is filled at startup
// and read-only afterwards.
type Registry struct {
	parsers map[string]Parser
	log     *zap.Logger
}

// NewRegistry returns registry with all built-in parsers.
func NewRegistry(eng *markup.Engine, cfg *config.ContentConfig, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if eng == nil {
		eng = markup.New(nil, markup.Options{}, log)
	}
	sanitize := cfg != nil && cfg.SanitizeHTML

	r := &Registry{parsers: make(map[string]Parser), log: log}
	r.Register("xhtml", &Xhtml{eng: eng})
	r.Register("md", NewMarkdown(eng.Options()))
	r.Register("html", &HTML{Sanitize: sanitize})
	r.Register("htm", &HTML{Sanitize: sanitize})
	r.Register("txt", Text{})
	r.Register("tmpl", &Template{})
	r.Register("gohtml", &Template{})
	r.Register("php", unsupported{})
	r.Register("phtml", unsupported{})
	return r
}

// Register adds or replaces parser for extension.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(strings.TrimPrefix(ext, "."))] = p
}

// Extensions lists extensions with registered parsers, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// For returns parser for document content file.
func (r *Registry) For(n *node.Node) (Parser, error) {
	if !n.IsDocument() {
		return nil, fmt.Errorf("'%s': %w", n.Path(), node.ErrNotADocument)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(n.ContentFile()), "."))
	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("'%s': %w", n.ContentFile(), ErrNoParser)
	}
	return p, nil
}

// Render renders document content with the matching parser.
func (r *Registry) Render(ctx context.Context, n *node.Node, query url.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := r.For(n)
	if err != nil {
		return "", err
	}
	r.log.Debug("Rendering content", zap.String("file", n.ContentFile()), zap.String("type", p.ContentType()))
	return p.Render(ctx, n, query)
}

// Xhtml renders book markup.
type Xhtml struct {
	eng *markup.Engine
}

func (x *Xhtml) Render(ctx context.Context, n *node.Node, query url.Values) (string, error) {
	return x.eng.RenderFile(ctx, n, n.ContentFile(), query)
}

func (*Xhtml) ContentType() string {
	return "text/html"
}

type unsupported struct{}

func (unsupported) Render(_ context.Context, n *node.Node, _ url.Values) (string, error) {
	return "", fmt.Errorf("server side scripts can not be executed '%s': %w", n.ContentFile(), ErrNoParser)
}

func (unsupported) ContentType() string {
	return "text/html"
}
