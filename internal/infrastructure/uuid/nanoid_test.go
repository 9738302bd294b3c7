package uuid

import (
	"strings"
	"testing"
)

func TestNanoIDGenerator(t *testing.T) {
	gen, err := NewNanoIDGenerator(12)
	if err != nil {
		t.Fatalf("NewNanoIDGenerator: %v", err)
	}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(id) != 12 {
			t.Fatalf("Generate: want length 12, got %q", id)
		}
		for _, r := range id {
			if !strings.ContainsRune(DefaultAlphabet, r) {
				t.Fatalf("Generate: rune %q outside alphabet", r)
			}
		}
		if seen[id] {
			t.Fatalf("Generate: duplicated id %q", id)
		}
		seen[id] = true
	}
}

func TestNewNanoIDGeneratorRejectsZeroLength(t *testing.T) {
	if _, err := NewNanoIDGenerator(0); err == nil {
		t.Fatalf("NewNanoIDGenerator: expected error")
	}
}
