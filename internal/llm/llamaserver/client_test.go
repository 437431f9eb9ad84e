package llamaserver

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateInput_BacksOffToRuneBoundary(t *testing.T) {
	// "µ" is two bytes; a 5-byte cut would land mid-rune.
	text := strings.Repeat("µ", 10)

	got := truncateInput(text, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated prompt is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "... [TRUNCATED]") {
		t.Errorf("missing truncation marker: %q", got)
	}
	if kept := strings.TrimSuffix(got, "... [TRUNCATED]"); kept != "µµ" {
		t.Errorf("kept prefix = %q, want two whole runes", kept)
	}
}

func TestTruncateInput_ShortTextUnchanged(t *testing.T) {
	if got := truncateInput("HbA1c 5.4 %", 100); got != "HbA1c 5.4 %" {
		t.Errorf("short text must pass through, got %q", got)
	}
}

func TestTruncateInput_ASCIIBoundaryExact(t *testing.T) {
	got := truncateInput("abcdef", 3)
	if got != "abc... [TRUNCATED]" {
		t.Errorf("got %q", got)
	}
}
