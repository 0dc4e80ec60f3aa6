package crypto

import (
	"strings"
	"testing"
)

func TestProofHasher(t *testing.T) {
	a := NewProofHasher("pepper")
	b := NewProofHasher("salt")

	h := a.Hash("qr-payload")
	if len(h) != 64 {
		t.Fatalf("expected 32-byte hex digest, got %d chars", len(h))
	}
	if strings.Contains(h, "qr-payload") {
		t.Fatalf("digest leaks payload")
	}
	if h != a.Hash("qr-payload") {
		t.Fatalf("hash must be deterministic")
	}
	if h == b.Hash("qr-payload") {
		t.Fatalf("salt must change the digest")
	}
	if NewProofHasher("").Hash("x") != NewProofHasher(DefaultSalt).Hash("x") {
		t.Fatalf("empty salt must fall back to the default")
	}
}
