// Package epub publishes a book as EPUB 2 archive. The book is assembled in
// "src" directory of the destination first and packaged afterwards, the
// assembled tree is kept for inspection.
package epub

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"vbook/config"
	"vbook/content"
	"vbook/markup"
	"vbook/node"
	"vbook/publish"
)

const (
	mimetypeContent = "application/epub+zip"
	xhtmlType       = "application/xhtml+xml"

	srcDir         = "src"
	metaInfDir     = "META-INF"
	oebpsDir       = "OEBPS"
	opfName        = "contents.opf"
	ncxName        = "toc.ncx"
	stylesheetName = "css/epub-book.css"
	coverName      = "cover.png"
	pageName       = "content.xhtml"
)

// item is a file of the book listed in the manifest.
type item struct {
	id        string
	href      string
	mediaType string
	node      *node.Node
}

func itemID(uri string) string {
	sum := sha1.Sum([]byte(uri))
	return "VB" + hex.EncodeToString(sum[:])
}

// Publisher exports books from the shelf as EPUB.
type Publisher struct {
	shelf   *publish.Bookshelf
	parsers *content.Registry
	cfg     *config.EpubConfig
	opts    markup.Options
	log     *zap.Logger
	page    *template.Template
	rpt     *config.Report
}

var _ publish.Publisher = (*Publisher)(nil)

func New(shelf *publish.Bookshelf, parsers *content.Registry, cfg *config.EpubConfig, opts markup.Options, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	page, err := parsePageTemplate(cfg.PageTemplatePath)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		shelf:   shelf,
		parsers: parsers,
		cfg:     cfg,
		opts:    opts,
		log:     log,
		page:    page,
	}, nil
}

// WithReport makes exports record assembled book and result into debug
// report.
func (p *Publisher) WithReport(rpt *config.Report) *Publisher {
	p.rpt = rpt
	return p
}

// export keeps state of a single book export.
type export struct {
	*Publisher
	ctx  context.Context
	book *node.Node

	dst   string
	src   string
	oebps string

	items []item
	// files referenced from the stylesheet
	assets []item
	// book relative URI to manifest href, used to rewrite links
	hrefs map[string]string
	// last navigation point play order
	playOrder int

	guid     string
	title    string
	language string
	author   string
}

// ExportBook assembles and packages the book. Destination must be an
// existing writable directory, it is emptied first.
func (p *Publisher) ExportBook(ctx context.Context, index string, opts publish.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	book, err := p.shelf.Book(index)
	if err != nil {
		return err
	}

	dst, err := prepareDestination(opts.Destination, book, opts.Overwrite, p.log)
	if err != nil {
		return err
	}

	e := &export{
		Publisher: p,
		ctx:       ctx,
		book:      book,
		dst:       dst,
		src:       filepath.Join(dst, srcDir),
		oebps:     filepath.Join(dst, srcDir, oebpsDir),
		hrefs:     make(map[string]string),
	}
	if err := e.prepareMetadata(); err != nil {
		return err
	}
	e.collect(&opts)

	p.log.Info("Exporting book", zap.String("book", book.Name()), zap.String("destination", dst), zap.Int("items", len(e.items)))

	out := filepath.Join(dst, e.outputName())
	defer e.report(out)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"structure", e.writeStructure},
		{"mimetype", e.writeMimetype},
		{"container", e.writeContainer},
		{"ibooks options", e.writeDisplayOptions},
		{"content", e.writeContent},
		{"stylesheet", e.writeStylesheet},
		{"cover", e.writeCover},
		{"package", e.writeOPF},
		{"toc", e.writeNCX},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(); err != nil {
			return fmt.Errorf("unable to write %s: %w", step.name, err)
		}
	}

	if err := pack(e.src, out, p.cfg.FixZip); err != nil {
		p.log.Error("Packaging failed, assembled book is kept", zap.String("src", e.src), zap.Error(err))
		return fmt.Errorf("%w '%s': %w", publish.ErrPackagingFailure, out, err)
	}
	p.log.Info("Book exported", zap.String("file", out))
	return nil
}

// report stores copy of assembled book and resulting archive, whatever
// was produced, into debug report.
func (e *export) report(out string) {
	if e.rpt == nil {
		return
	}
	if _, err := os.Stat(e.src); err == nil {
		if err := e.rpt.StoreCopy("epub/"+e.book.Name(), e.src); err != nil {
			e.log.Warn("Unable to store assembled book in report", zap.Error(err))
		}
	}
	if _, err := os.Stat(out); err == nil {
		e.rpt.Store("result/"+filepath.Base(out), out)
	}
}

func (e *export) prepareMetadata() error {
	m, err := e.book.Meta()
	if err != nil {
		return err
	}
	if e.guid, err = e.book.GUID(); err != nil {
		return err
	}
	e.title = m.String("title", e.book.DisplayName())
	e.language = m.String("language", e.cfg.DefaultLanguage)
	e.author = m.String("author", e.cfg.DefaultAuthor)
	return nil
}

// collect lists documents in book order, each followed by its resources.
func (e *export) collect(opts *publish.Options) {
	pages, resources := 0, 0
	for _, d := range e.book.List() {
		if opts.Excluded(d.URI()) {
			e.log.Debug("Document excluded", zap.String("uri", d.URI()))
			continue
		}
		href := path.Join(d.RelativeURI(), pageName)
		e.items = append(e.items, item{id: itemID(d.URI()), href: href, mediaType: xhtmlType, node: d})
		e.hrefs[d.RelativeURI()] = href
		pages++

		for _, r := range d.Resources() {
			rel := r.RelativeURI()
			e.hrefs[rel] = rel
			if rel == coverName {
				// book cover.png becomes the cover
				continue
			}
			if sniffed, err := node.Sniff(r.Path()); err == nil && len(sniffed) > 0 && sniffed != r.ContentType() {
				e.log.Warn("Resource content does not match its extension",
					zap.String("uri", r.URI()), zap.String("type", r.ContentType()), zap.String("detected", sniffed))
			}
			e.items = append(e.items, item{id: itemID(r.URI()), href: rel, mediaType: r.ContentType(), node: r})
			resources++
		}
	}
	e.log.Debug("Book items collected", zap.Int("pages", pages), zap.Int("resources", resources))
}

func (e *export) writeStructure() error {
	for _, dir := range []string{
		filepath.Join(e.src, metaInfDir),
		filepath.Join(e.oebps, filepath.Dir(filepath.FromSlash(stylesheetName))),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (e *export) writeMimetype() error {
	return os.WriteFile(filepath.Join(e.src, "mimetype"), []byte(mimetypeContent), 0644)
}

func (e *export) writeContent() error {
	for _, it := range e.items {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(e.oebps, filepath.FromSlash(it.href))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if it.node.IsResource() {
			if err := copyFile(it.node.Path(), target); err != nil {
				return fmt.Errorf("unable to copy resource '%s': %w", it.node.URI(), err)
			}
			continue
		}
		data, err := e.renderPage(it)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return err
		}
		e.log.Debug("Page written", zap.String("href", it.href))
	}
	return nil
}

// prepareDestination validates destination and empties it.
func prepareDestination(dst string, book *node.Node, overwrite bool, log *zap.Logger) (string, error) {
	if len(dst) == 0 {
		return "", fmt.Errorf("destination is not set: %w", publish.ErrDestinationInvalid)
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("destination '%s': %w", dst, publish.ErrDestinationInvalid)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("destination '%s': %w", abs, publish.ErrDestinationInvalid)
	}
	if within(abs, book.Path()) || within(book.Path(), abs) {
		return "", fmt.Errorf("destination '%s' overlaps with the book: %w", abs, publish.ErrDestinationInvalid)
	}

	probe, err := os.CreateTemp(abs, ".vbook-*")
	if err != nil {
		return "", fmt.Errorf("destination '%s' is not writable: %w", abs, publish.ErrDestinationInvalid)
	}
	probe.Close()
	os.Remove(probe.Name())

	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("destination '%s': %w: %w", abs, publish.ErrDestinationInvalid, err)
	}
	if len(entries) > 0 && !overwrite {
		return "", fmt.Errorf("destination '%s' is not empty: %w", abs, publish.ErrDestinationInvalid)
	}

	var errs error
	for _, entry := range entries {
		errs = multierr.Append(errs, os.RemoveAll(filepath.Join(abs, entry.Name())))
	}
	if errs != nil {
		return "", fmt.Errorf("unable to empty destination '%s': %w", abs, errs)
	}
	if len(entries) > 0 {
		log.Warn("Destination emptied", zap.String("destination", abs), zap.Int("entries", len(entries)))
	}
	return abs, nil
}

// within reports if p is dir or inside it.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
