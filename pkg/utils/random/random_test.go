package random

import (
	"strings"
	"testing"
)

func TestCode(t *testing.T) {
	code := Code(8)
	if len(code) != 8 {
		t.Fatalf("expected length 8, got %d", len(code))
	}
	for _, ch := range code {
		if !strings.ContainsRune(letters, ch) {
			t.Fatalf("unexpected char %q in %s", ch, code)
		}
	}
	if Code(0) != "" {
		t.Fatalf("expected empty code for zero length")
	}
}

func TestSeedVaries(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 16; i++ {
		seen[Seed()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("seed did not vary: %v", seen)
	}
}
