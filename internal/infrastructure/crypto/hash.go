package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

const DefaultSalt = "default-salt"

// ProofHasher derives the stored fingerprint of a check-in proof. Only the
// digest of payload+salt is ever persisted.
type ProofHasher struct{ salt string }

func NewProofHasher(salt string) ProofHasher {
	if salt == "" {
		salt = DefaultSalt
	}
	return ProofHasher{salt: salt}
}

func (h ProofHasher) Hash(payload string) string {
	sum := blake2b.Sum256([]byte(payload + h.salt))
	return hex.EncodeToString(sum[:])
}
