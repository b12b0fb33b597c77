package markup

import (
	"html"
)

// void elements never have content and are written self-closed.
var void = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"keygen": true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// passthrough re-emits element as is.
type passthrough struct{}

func (passthrough) Start(_ *Context, el *Element) (string, error) {
	if void[el.Name] {
		return "", nil
	}
	return "<" + el.QName() + el.AttrString() + ">", nil
}

func (passthrough) Data(_ *Context, el *Element, data string) (string, error) {
	if void[el.Name] {
		return "", nil
	}
	return html.EscapeString(data), nil
}

func (passthrough) End(_ *Context, el *Element) (string, error) {
	if void[el.Name] {
		return "<" + el.QName() + el.AttrString() + "/>", nil
	}
	return "</" + el.QName() + ">", nil
}

// silent emits nothing but its content.
type silent struct{}

func (silent) Start(*Context, *Element) (string, error) {
	return "", nil
}

func (silent) Data(_ *Context, _ *Element, data string) (string, error) {
	return html.EscapeString(data), nil
}

func (silent) End(*Context, *Element) (string, error) {
	return "", nil
}
