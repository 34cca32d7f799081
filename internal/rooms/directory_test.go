package rooms

import (
	"strings"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := generateCode()
		if len(code) != codeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeChars, ch) {
				t.Fatalf("code %q contains %q outside the alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	// 100 draws from a 32^8 space colliding would point at a broken generator.
	if len(seen) < 100 {
		t.Errorf("only %d distinct codes out of 100", len(seen))
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := []struct {
		identifier string
		want       bool
	}{
		{"ABCD2345", true},
		{"abcd2345", false},                             // lowercase is not in the alphabet
		{"ABCD234", false},                              // too short
		{"ABCD0145", false},                             // 0 and 1 are excluded as ambiguous
		{"4f9c61de-8b5a-4f44-9df0-1c2d3e4f5a6b", false}, // UUID
		{"", false},
	}

	for _, tt := range tests {
		if got := looksLikeCode(tt.identifier); got != tt.want {
			t.Errorf("looksLikeCode(%q) = %v, want %v", tt.identifier, got, tt.want)
		}
	}
}

// Create/Get/Delete round-trips need a Redis instance and are exercised by
// the deployment's integration suite, not here.
