package markup

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"vbook/node"
)

// Listener runs when parse is finished, returned string is appended to the
// output.
type Listener func(pc *Context) (string, error)

type footnote struct {
	href    string
	caption string
}

// Context keeps state of a single parse. It is passed to every handler and
// discarded when parse ends.
type Context struct {
	context.Context

	// Node being rendered.
	Node *node.Node
	// Query of the request, used by quiz answers.
	Query url.Values
	Log   *zap.Logger
	File  string
	Opts  Options

	footnotes []footnote
	glossary  map[string]string
	listeners []Listener

	quiz, question, answer int
}

func newContext(ctx context.Context, n *node.Node, query url.Values, file string, opts Options, log *zap.Logger) *Context {
	if query == nil {
		query = url.Values{}
	}
	return &Context{
		Context:  ctx,
		Node:     n,
		Query:    query,
		Log:      log,
		File:     file,
		Opts:     opts,
		glossary: make(map[string]string),
	}
}

// OnFinish registers listener, listeners run in registration order.
func (pc *Context) OnFinish(l Listener) {
	pc.listeners = append(pc.listeners, l)
}

func (pc *Context) finish() (string, error) {
	var out string
	for _, l := range pc.listeners {
		s, err := l(pc)
		if err != nil {
			return "", err
		}
		out += s
	}
	return out, nil
}
