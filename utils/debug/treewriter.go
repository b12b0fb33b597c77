// Package debug formats nested structures as indented text.
package debug

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TreeWriter accumulates indented lines, one level of depth per indent.
type TreeWriter struct {
	sb     strings.Builder
	indent string
}

// NewTreeWriter returns writer indenting with two spaces when indent is
// empty.
func NewTreeWriter(indent string) *TreeWriter {
	if len(indent) == 0 {
		indent = "  "
	}
	return &TreeWriter{indent: indent}
}

func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

func (tw *TreeWriter) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, tw.sb.String())
	return int64(n), err
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat(tw.indent, max(depth, 0)))
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// Value writes "label: value", non-empty strings are quoted.
func (tw *TreeWriter) Value(depth int, label string, value any) {
	if s, ok := value.(string); ok {
		value = encodeText(s)
	}
	tw.Line(depth, "%s: %v", label, value)
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
