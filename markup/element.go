package markup

import (
	"encoding/xml"
	"html"
	"slices"
	"strings"
)

// Element is one tag occurrence during a single parse.
type Element struct {
	// Space is Namespace for elements of our prefixes and the raw prefix
	// otherwise.
	Space    string
	Prefix   string
	Name     string
	Attrs    []xml.Attr
	Parent   *Element
	Children []*Element

	// Buffer collects output of a capturing element and its descendants.
	Buffer strings.Builder

	handler Handler
	capture bool
}

// QName returns tag name as written in the source.
func (e *Element) QName() string {
	return qualified(e.Prefix, e.Name)
}

func qualified(prefix, name string) string {
	if len(prefix) == 0 {
		return name
	}
	return prefix + ":" + name
}

// Attr returns attribute value or def when attribute is absent.
func (e *Element) Attr(name, def string) string {
	for _, a := range e.Attrs {
		if qualified(a.Name.Space, a.Name.Local) == name {
			return a.Value
		}
	}
	return def
}

func (e *Element) HasAttr(name string) bool {
	return slices.ContainsFunc(e.Attrs, func(a xml.Attr) bool {
		return qualified(a.Name.Space, a.Name.Local) == name
	})
}

// AttrString renders attributes as ` name="value"`, values are escaped.
func (e *Element) AttrString(exclude ...string) string {
	var sb strings.Builder
	for _, a := range e.Attrs {
		name := qualified(a.Name.Space, a.Name.Local)
		if slices.Contains(exclude, name) {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(a.Value))
		sb.WriteString(`"`)
	}
	return sb.String()
}

// Capture redirects output of the element data hook and of all its
// descendants into Buffer. Must be called from Start.
func (e *Element) Capture() {
	e.capture = true
}

func (e *Element) Capturing() bool {
	return e.capture
}

// Captured returns buffered output.
func (e *Element) Captured() string {
	return e.Buffer.String()
}

// Is reports element in namespace with local name.
func (e *Element) Is(space, name string) bool {
	return e.Space == space && e.Name == name
}

// target returns nearest capturing element starting at e, nil means
// document output.
func (e *Element) target() *Element {
	for t := e; t != nil; t = t.Parent {
		if t.capture {
			return t
		}
	}
	return nil
}

// deepTrim collapses whitespace runs into single space and trims result.
func deepTrim(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
