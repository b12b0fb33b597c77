package markup

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"vbook/node"
)

var errNoParent = errors.New("toc target is set to \"parent\" but the node does not have a parent")

// tocElement renders table of contents of target: self and root (book),
// parent or path relative to the current node.
type tocElement struct{}

func (tocElement) Start(pc *Context, el *Element) (string, error) {
	if pc.Node == nil {
		return "", fmt.Errorf("no current node: %w", ErrElement)
	}
	target := el.Attr("target", "self")
	head := "\n<!-- TOC " + html.EscapeString(target) + " -->\n"

	switch target {
	case "parent":
		parent := pc.Node.Parent()
		if parent == nil {
			return "", fmt.Errorf("%w: %w", errNoParent, ErrElement)
		}
		return head + RenderToc(parent.Toc()), nil
	case "root", "self":
		root, err := pc.Node.Root()
		if err != nil {
			return "", err
		}
		return head + RenderToc(root.Toc()), nil
	}
	n, err := pc.Node.Child(target)
	if err != nil {
		pc.Log.Debug("Unknown toc target", zap.String("target", target), zap.Error(err))
		return "\nTOC unknown target, target expected to be parent, root, self or a valid relative path to self\n", nil
	}
	return head + RenderToc(n.Toc()), nil
}

func (tocElement) Data(*Context, *Element, string) (string, error) {
	return "", nil
}

func (tocElement) End(*Context, *Element) (string, error) {
	return "", nil
}

// RenderToc returns nested html lists for toc, empty string for empty toc.
func RenderToc(items []node.TocItem) string {
	var sb strings.Builder
	renderToc(&sb, items)
	return sb.String()
}

func renderToc(sb *strings.Builder, items []node.TocItem) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n<ul class=\"toc document-nodes\">")
	for _, item := range items {
		sb.WriteString("\n<li class=\"toc document-node\"><a  class=\"toc link\" href=\"" + item.URI + "\">" + html.EscapeString(item.Caption) + "</a>")
		renderToc(sb, item.Children)
		sb.WriteString("\n</li>")
	}
	sb.WriteString("\n</ul>")
}
