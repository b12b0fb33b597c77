package content

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"vbook/node"
)

// HTML passes html content through. When Sanitize is set content is
// re-serialized, only body is kept and scripts are removed.
type HTML struct {
	Sanitize bool
}

func (h *HTML) Render(ctx context.Context, n *node.Node, _ url.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.ReadFile(n.ContentFile())
	if err != nil {
		return "", fmt.Errorf("unable to read content file: %w", err)
	}
	if !h.Sanitize {
		return string(src), nil
	}
	return sanitize(string(src))
}

func (*HTML) ContentType() string {
	return "text/html"
}

func sanitize(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("unable to parse html: %w", err)
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return "", nil
	}
	clean(body)

	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("unable to render html: %w", err)
		}
	}
	return sb.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// clean drops scripts, event handler attributes and script links.
func clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Iframe || c.DataAtom == atom.Object) {
			n.RemoveChild(c)
		} else if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			clean(c)
		}
		c = next
	}
	if n.Type != html.ElementNode {
		return
	}
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if (key == "href" || key == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}
