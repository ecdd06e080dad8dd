package catalog

import (
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: []string{}},
		{name: "trims and dedups", input: []string{" a ", "a"}, want: []string{"a"}},
		{name: "case sensitive", input: []string{"a", " A ", "a"}, want: []string{"a", "A"}},
		{name: "drops empty", input: []string{"", "  ", "\t", "x"}, want: []string{"x"}},
		{name: "keeps first-seen order", input: []string{"z", "y", "z", "x"}, want: []string{"z", "y", "x"}},
		{name: "inner whitespace kept", input: []string{"dark  mood"}, want: []string{"dark  mood"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeTags(tt.input); !equalStrings(got, tt.want) {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	for n, want := range map[int]string{0: "", 1: "?", 3: "?,?,?"} {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := tokenize("  Red   CAR\tnight ")
	if want := []string{"red", "car", "night"}; !equalStrings(got, want) {
		t.Errorf("tokenize = %q, want %q", got, want)
	}
	if got := tokenize(" \t "); len(got) != 0 {
		t.Errorf("tokenize(blank) = %q, want empty", got)
	}
}
