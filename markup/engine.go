// Package markup translates book markup (xhtml fragments with book
// elements) into html.
package markup

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"vbook/node"
)

const (
	chunkSize = 16384
	rootTag   = "<volta:xhtml"
	rootOpen  = `<volta:xhtml xmlns:volta="` + Namespace + `">`
	rootClose = `</volta:xhtml>`
)

// entities are not defined by xml but customarily left unescaped.
var entities = map[string]string{
	"nbsp":   "\u00a0",
	"copy":   "©",
	"reg":    "®",
	"trade":  "™",
	"hellip": "…",
	"mdash":  "—",
	"ndash":  "–",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"laquo":  "«",
	"raquo":  "»",
	"euro":   "€",
	"pound":  "£",
	"middot": "·",
	"bull":   "•",
	"times":  "×",
	"divide": "÷",
	"deg":    "°",
	"shy":    "\u00ad",
	"sect":   "§",
	"para":   "¶",
	"larr":   "←",
	"rarr":   "→",
	"uarr":   "↑",
	"darr":   "↓",
	"xlarr":  "⟵",
	"xrarr":  "⟶",
	"check":  "✓",
}

var emoji = strings.NewReplacer(
	":-)", "&#127773;",
	"8-)", "&#128526;",
	";-)", "&#128521;",
	":-(", "&#128543;",
)

// Options of the translation.
type Options struct {
	HighlightStyle   string
	HighlightClasses bool
	TabWidth         int
	QuizButton       string
	// Verbose interleaves output with comments naming parser events.
	Verbose bool
}

// Engine translates documents. It is safe for concurrent use, all parse
// state lives in Context.
type Engine struct {
	reg  *Registry
	opts Options
	log  *zap.Logger
}

func New(reg *Registry, opts Options, log *zap.Logger) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TabWidth <= 0 {
		opts.TabWidth = 4
	}
	if len(opts.QuizButton) == 0 {
		opts.QuizButton = "Verstuur"
	}
	if len(opts.HighlightStyle) == 0 {
		opts.HighlightStyle = "github"
	}
	return &Engine{reg: reg, opts: opts, log: log}
}

func (e *Engine) Options() Options {
	return e.opts
}

// RenderFile translates file in the context of node n.
func (e *Engine) RenderFile(ctx context.Context, n *node.Node, file string, query url.Values) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("unable to open content file: %w", err)
	}
	defer f.Close()
	return e.Render(ctx, n, f, file, query)
}

// Render translates markup read from r. Name is used in error messages.
func (e *Engine) Render(ctx context.Context, n *node.Node, r io.Reader, name string, query url.Values) (string, error) {
	src, err := wrap(r)
	if err != nil {
		return "", fmt.Errorf("unable to read content of '%s': %w", name, err)
	}
	p := &parse{
		eng: e,
		pc:  newContext(ctx, n, query, name, e.opts, e.log.With(zap.String("file", name))),
		dec: xml.NewDecoder(src),
	}
	p.dec.Strict = true
	p.dec.Entity = entities

	if err := p.run(); err != nil {
		return "", err
	}
	return emoji.Replace(p.out.String()), nil
}

// wrap drops leading whitespace and adds root element unless source already
// has it.
func wrap(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, chunkSize)
	for {
		c, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			return strings.NewReader(rootOpen + rootClose), nil
		}
		if err != nil {
			return nil, err
		}
		if !unicode.IsSpace(c) {
			if err := br.UnreadRune(); err != nil {
				return nil, err
			}
			break
		}
	}
	head, err := br.Peek(len(rootTag))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if strings.EqualFold(string(head), rootTag) {
		return br, nil
	}
	return io.MultiReader(strings.NewReader(rootOpen), br, strings.NewReader(rootClose)), nil
}

type parse struct {
	eng   *Engine
	pc    *Context
	dec   *xml.Decoder
	out   strings.Builder
	stack []*Element
	// prefix declarations per open element
	scopes []map[string]string
	closed bool
}

func (p *parse) fail(code ErrorCode, err error) error {
	line, col := p.dec.InputPos()
	return &MarkupSyntaxError{Code: code, Line: line, Column: col, File: p.pc.File, Err: err}
}

func (p *parse) run() error {
	for {
		if err := p.pc.Err(); err != nil {
			return err
		}
		tok, err := p.dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.fail(classify(err), err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			err = p.start(t)
		case xml.EndElement:
			err = p.end(t)
		case xml.CharData:
			err = p.data(string(t))
		default:
			// comments, processing instructions and directives are dropped
		}
		if err != nil {
			return err
		}
	}
	if len(p.stack) > 0 {
		return p.fail(CodeSyntax, fmt.Errorf("unexpected end of input, element <%s> is not closed", p.stack[len(p.stack)-1].QName()))
	}

	tail, err := p.pc.finish()
	if err != nil {
		return p.fail(CodeElement, err)
	}
	p.out.WriteString(tail)
	return nil
}

func (p *parse) top() *Element {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// write sends s to the nearest capturing element starting at el or to the
// output.
func (p *parse) write(el *Element, s string) {
	if len(s) == 0 {
		return
	}
	if t := el.target(); t != nil {
		t.Buffer.WriteString(s)
		return
	}
	p.out.WriteString(s)
}

func (p *parse) trace(el *Element, event string) {
	if p.eng.opts.Verbose {
		p.write(el, fmt.Sprintf("\n<!--%s: %s-->\n", event, el.QName()))
	}
}

// resolve returns namespace of the prefix: ours for known prefixes and for
// prefixes declared with our URI, raw prefix otherwise.
func (p *parse) resolve(prefix string) string {
	if len(prefix) == 0 {
		for i := len(p.scopes) - 1; i >= 0; i-- {
			if uri, ok := p.scopes[i][""]; ok && uri == Namespace {
				return Namespace
			}
		}
		return ""
	}
	for _, known := range Prefixes {
		if prefix == known {
			return Namespace
		}
	}
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if uri, ok := p.scopes[i][prefix]; ok {
			if uri == Namespace {
				return Namespace
			}
			break
		}
	}
	return prefix
}

func (p *parse) start(t xml.StartElement) error {
	if p.closed {
		return p.fail(CodeSyntax, fmt.Errorf("element <%s> after root element", qualified(t.Name.Space, t.Name.Local)))
	}

	scope := make(map[string]string)
	for _, a := range t.Attr {
		switch {
		case a.Name.Space == "xmlns":
			scope[a.Name.Local] = a.Value
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			scope[""] = a.Value
		}
	}
	p.scopes = append(p.scopes, scope)

	parent := p.top()
	el := &Element{
		Space:  p.resolve(t.Name.Space),
		Prefix: t.Name.Space,
		Name:   t.Name.Local,
		Attrs:  t.Attr,
		Parent: parent,
	}
	el.handler = p.eng.reg.Lookup(el.Space, el.Name)
	if parent != nil {
		parent.Children = append(parent.Children, el)
	}
	p.stack = append(p.stack, el)

	p.trace(el, "OnElementStartHandler")
	s, err := el.handler.Start(p.pc, el)
	if err != nil {
		return p.fail(CodeElement, fmt.Errorf("<%s>: %w", el.QName(), err))
	}
	// start translation of capturing element goes to enclosing target
	p.write(parent, s)
	return nil
}

func (p *parse) data(s string) error {
	el := p.top()
	if el == nil {
		if len(strings.TrimSpace(s)) > 0 {
			return p.fail(CodeSyntax, errors.New("junk after root element"))
		}
		return nil
	}
	p.trace(el, "OnCharacterDataHandler")
	out, err := el.handler.Data(p.pc, el, s)
	if err != nil {
		return p.fail(CodeElement, fmt.Errorf("<%s>: %w", el.QName(), err))
	}
	p.write(el, out)
	return nil
}

func (p *parse) end(t xml.EndElement) error {
	el := p.top()
	name := qualified(t.Name.Space, t.Name.Local)
	if el == nil {
		return p.fail(CodeTagMismatch, fmt.Errorf("unexpected end element </%s>", name))
	}
	if el.QName() != name {
		return p.fail(CodeTagMismatch, fmt.Errorf("element <%s> closed by </%s>", el.QName(), name))
	}
	p.stack = p.stack[:len(p.stack)-1]
	p.scopes = p.scopes[:len(p.scopes)-1]
	if len(p.stack) == 0 {
		p.closed = true
	}

	p.trace(el, "OnElementEndHandler")
	s, err := el.handler.End(p.pc, el)
	if err != nil {
		return p.fail(CodeElement, fmt.Errorf("<%s>: %w", el.QName(), err))
	}
	p.write(el.Parent, s)
	return nil
}
