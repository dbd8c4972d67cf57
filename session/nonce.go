package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NonceGuard binds a login attempt to its callback through a single
// outstanding random value held in durable storage. Starting a new login
// overwrites the previous value, abandoning the older attempt.
type NonceGuard struct {
	store Store
}

// NewNonceGuard constructs a guard over the given store.
func NewNonceGuard(store Store) *NonceGuard {
	return &NonceGuard{store: store}
}

// Issue generates a fresh nonce and persists it, replacing any outstanding
// value.
func (g *NonceGuard) Issue() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)
	if err := g.store.Set(nonceStorageKey, nonce); err != nil {
		return "", fmt.Errorf("persist nonce: %w", err)
	}
	return nonce, nil
}

// VerifyAndConsume compares nonce against the persisted value. The stored
// value is deleted on every call, match or not, so a used or mismatched
// nonce can never be redeemed again.
func (g *NonceGuard) VerifyAndConsume(nonce string) bool {
	stored, ok := g.store.Get(nonceStorageKey)
	_ = g.store.Delete(nonceStorageKey)
	return ok && stored != "" && nonce == stored
}
