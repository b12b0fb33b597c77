//go:build !windows

package config

import (
	"os"
	"strings"
	"unicode"

	"golang.org/x/term"
)

// CleanFileName makes book output name usable as a file name: separators
// and control characters are dropped, the name is never hidden.
func CleanFileName(in string) string {
	out := strings.Map(func(r rune) rune {
		if r == os.PathSeparator || r == os.PathListSeparator || unicode.IsControl(r) {
			return -1
		}
		return r
	}, in)
	out = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(out), "."))
	if len(out) == 0 {
		return UnnamedFile
	}
	return out
}

// EnableColorOutput reports if log stream is a terminal.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
