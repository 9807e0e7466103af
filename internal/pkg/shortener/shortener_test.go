package shortener

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ids := []uint{0, 1, 61, 62, 12345, 999999}
	for _, id := range ids {
		encoded := EncodeID(id)
		if encoded == "" {
			t.Fatalf("EncodeID(%d) returned empty string", id)
		}
		if got := DecodeID(encoded); got != id {
			t.Errorf("DecodeID(EncodeID(%d)) = %d", id, got)
		}
	}
}

func TestDecodeIgnoresInvalidChars(t *testing.T) {
	if got, want := DecodeID("1-0"), DecodeID("10"); got != want {
		t.Errorf("DecodeID with invalid char = %d, want %d", got, want)
	}
}

func TestGenerateSecureSlug(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		slug, err := GenerateSecureSlug(8)
		if err != nil {
			t.Fatalf("GenerateSecureSlug: %v", err)
		}
		if len(slug) != 8 {
			t.Fatalf("slug %q has length %d, want 8", slug, len(slug))
		}
		for _, ch := range slug {
			if !strings.ContainsRune(alphabet, ch) {
				t.Fatalf("slug %q contains invalid char %q", slug, ch)
			}
		}
		if seen[slug] {
			t.Fatalf("slug %q generated twice in 50 draws", slug)
		}
		seen[slug] = true
	}
}

func TestGenerateSecureSlugRejectsBadLength(t *testing.T) {
	if _, err := GenerateSecureSlug(0); err == nil {
		t.Error("expected error for zero length")
	}
	if _, err := GenerateSecureSlug(-3); err == nil {
		t.Error("expected error for negative length")
	}
}
