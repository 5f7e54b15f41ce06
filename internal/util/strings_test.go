package util

import "testing"

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", " ", "a", "b"); got != "a" {
		t.Fatalf("want a got %q", got)
	}
	if got := FirstNonEmpty("", "  "); got != "" {
		t.Fatalf("want empty got %q", got)
	}
}
