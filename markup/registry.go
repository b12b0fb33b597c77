package markup

import (
	"fmt"
	"slices"
)

// Namespace of the book elements. Prefixes "volta" and "v" are bound to it
// without declaration.
const Namespace = "https://volta-framework.com/component-books/xhtml"

// Prefixes always resolved to Namespace.
var Prefixes = []string{"volta", "v"}

// Handler translates one element. Returned strings go to the current
// output target, see Element.Capture.
type Handler interface {
	Start(pc *Context, el *Element) (string, error)
	Data(pc *Context, el *Element, data string) (string, error)
	End(pc *Context, el *Element) (string, error)
}

// Constructor creates handler for every element occurrence, so handlers may
// keep per-element state.
type Constructor func() Handler

type key struct {
	space, name string
}

// Registry maps (namespace, name) to handler constructors. It is filled
// once at startup and read-only afterwards.
type Registry struct {
	handlers map[key]Constructor
}

// NewRegistry returns registry with all built-in elements.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[key]Constructor)}

	r.Register(Namespace, "xhtml", func() Handler { return silent{} })
	r.Register(Namespace, "node", func() Handler { return &nodeLink{} })
	r.Register(Namespace, "footnote", func() Handler { return &footnoteElement{} })
	r.Register(Namespace, "glossary", func() Handler { return &glossaryElement{} })
	r.Register(Namespace, "quote", func() Handler { return quoteElement{} })
	r.Register(Namespace, "img", func() Handler { return imgElement{} })
	r.Register(Namespace, "quiz", func() Handler { return quizElement{} })
	r.Register(Namespace, "question", func() Handler { return questionElement{} })
	r.Register(Namespace, "answer", func() Handler { return answerElement{} })
	r.Register(Namespace, "toc", func() Handler { return tocElement{} })
	for _, tag := range codeTags {
		r.Register(Namespace, tag, func() Handler { return &codeElement{} })
	}
	return r
}

// Register adds or replaces constructor.
func (r *Registry) Register(space, name string, ctor Constructor) {
	r.handlers[key{space, name}] = ctor
}

// Lookup returns handler for the element, unknown pairs get passthrough.
func (r *Registry) Lookup(space, name string) Handler {
	if ctor, ok := r.handlers[key{space, name}]; ok {
		return ctor()
	}
	return passthrough{}
}

// Names lists registered elements as prefix:name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		if k.space == Namespace {
			names = append(names, fmt.Sprintf("%s:%s", Prefixes[0], k.name))
		} else {
			names = append(names, fmt.Sprintf("{%s}%s", k.space, k.name))
		}
	}
	slices.Sort(names)
	return names
}
