// Package idempotency holds the ledger of client tokens and the outcomes
// they produced.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

const (
	RouteCreateReservation = "create-reservation"
	RouteCreateOrder       = "create-order"
)

// ErrDuplicate is returned by stores when a record with the same key already exists.
var ErrDuplicate = errors.New("idempotency: record already exists")

type Key struct {
	TenantID string
	Route    string
	Token    string
}

type Record struct {
	Key
	Fingerprint string
	Status      int
	Body        []byte
	CreatedAt   time.Time
}

func (r Record) Matches(fingerprint string) bool { return r.Fingerprint == fingerprint }

// Fingerprint hashes the canonical JSON encoding of v.
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// OrderKey derives the finance idempotency key from the reservation token so
// retries of the saga never create a second order.
func OrderKey(token string) string { return RouteCreateOrder + ":" + token }
