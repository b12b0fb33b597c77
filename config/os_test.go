package config

import "testing"

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Great Novel", "Great Novel"},
		{"Part 1/2", "Part 12"},
		{"..hidden", "hidden"},
		{"  spaced  ", "spaced"},
		{"tab\tand\nline", "tabandline"},
		{"", UnnamedFile},
		{"/", UnnamedFile},
		{" . ", UnnamedFile},
	}
	for _, tt := range tests {
		if got := CleanFileName(tt.in); got != tt.want {
			t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
