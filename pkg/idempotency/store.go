package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrKeyReused is returned when an idempotency key arrives with a request
// that differs from the one it was first used with.
var ErrKeyReused = errors.New("idempotency key reused with a different request")

// Record is the stored outcome of the first request made with a key.
type Record struct {
	Fingerprint string          `json:"fingerprint"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store keeps request outcomes keyed by client-supplied idempotency keys.
// Put keeps the first record written for a key and reports whether it won.
type Store interface {
	Get(ctx context.Context, key string) (*Record, bool, error)
	Put(ctx context.Context, key string, rec Record) (bool, error)
}

// Key scopes a client key to one operation on one entity.
func Key(operation, entityID, clientKey string) string {
	return strings.Join([]string{"idem", operation, entityID, clientKey}, ":")
}

// Fingerprint hashes the parts that make two requests the same request.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the stored payload for key when the fingerprint matches.
func Lookup(ctx context.Context, s Store, key, fingerprint string) (json.RawMessage, bool, error) {
	rec, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if rec.Fingerprint != fingerprint {
		return nil, false, ErrKeyReused
	}
	return rec.Payload, true, nil
}

// Save stores payload under key unless another request got there first.
func Save(ctx context.Context, s Store, key, fingerprint string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.Put(ctx, key, Record{
		Fingerprint: fingerprint,
		Payload:     raw,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}
