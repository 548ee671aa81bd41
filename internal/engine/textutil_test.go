package engine

import (
	"testing"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips tags", "<p>Senior <b>Engineer</b></p>", "Senior Engineer"},
		{"plain text", "no markup here", "no markup here"},
		{"trims whitespace", "  <div>text</div>  ", "text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanHTML(tt.in); got != tt.want {
				t.Errorf("CleanHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	t.Run("crlf normalized", func(t *testing.T) {
		got := SplitLines("a\r\nb\r\nc")
		if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
			t.Errorf("SplitLines() = %v", got)
		}
	})

	t.Run("keeps empty lines for stable indices", func(t *testing.T) {
		got := SplitLines("header\n\nbody")
		if len(got) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(got))
		}
		if got[1] != "" {
			t.Errorf("line 1 = %q, want empty", got[1])
		}
		if got[2] != "body" {
			t.Errorf("line 2 = %q, want body", got[2])
		}
	})

	t.Run("trims trailing whitespace only", func(t *testing.T) {
		got := SplitLines("  indented   \t")
		if got[0] != "  indented" {
			t.Errorf("got %q, want leading spaces preserved", got[0])
		}
	})
}

func TestCollapseSpaces(t *testing.T) {
	if got := CollapseSpaces("Software   Engineer \t chez \n Acme"); got != "Software Engineer chez Acme" {
		t.Errorf("CollapseSpaces() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Errorf("Truncate() = %q, want abc", got)
	}
	if got := Truncate("ab", 10); got != "ab" {
		t.Errorf("Truncate() = %q, want ab", got)
	}
}
