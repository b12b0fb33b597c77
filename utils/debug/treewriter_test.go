package debug

import (
	"bytes"
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		indent string
		depth  int
		format string
		args   []any
		want   string
	}{
		{"no depth", "", 0, "test", nil, "test\n"},
		{"depth 2", "", 2, "indented", nil, "    indented\n"},
		{"custom indent", "\t", 1, "%s=%d", []any{"x", 1}, "\tx=1\n"},
		{"negative depth", "", -1, "flat", nil, "flat\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter(tt.indent)
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Value(t *testing.T) {
	tw := NewTreeWriter("")
	tw.Value(0, "title", "A \"quoted\" title")
	tw.Value(1, "empty", "")
	tw.Value(1, "index", 3)

	want := "title: \"A \\\"quoted\\\" title\"\n  empty: \n  index: 3\n"
	if got := tw.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	var buf bytes.Buffer
	n, err := tw.WriteTo(&buf)
	if err != nil || n != int64(len(want)) || buf.String() != want {
		t.Errorf("WriteTo = %d, %v, %q", n, err, buf.String())
	}
}
