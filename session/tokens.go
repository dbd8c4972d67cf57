package session

import (
	"encoding/json"
	"sync"
	"time"
)

// TokenSet is the current access/id token pair.
type TokenSet struct {
	AccessToken string    `json:"access_token"`
	IDToken     string    `json:"id_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// TokenCache holds the session's token pair and persists it to durable
// storage so a session survives process restarts. Reads before the first
// SetTokens yield empty values, which callers treat as "not authenticated".
// No validation happens on set; decoding is the reader's concern.
type TokenCache struct {
	mu    sync.RWMutex
	store Store
	cur   TokenSet
}

// NewTokenCache constructs a cache, restoring any persisted token pair.
func NewTokenCache(store Store) *TokenCache {
	c := &TokenCache{store: store}
	if raw, ok := store.Get(tokenStorageKey); ok {
		var set TokenSet
		if err := json.Unmarshal([]byte(raw), &set); err == nil {
			c.cur = set
		}
	}
	return c
}

// SetTokens replaces the current pair wholesale. The expiry is derived from
// the id token's exp claim when present.
func (c *TokenCache) SetTokens(access, id string) {
	set := TokenSet{AccessToken: access, IDToken: id}
	if claims, ok := DecodeClaims(id); ok {
		set.ExpiresAt = claims.Expiry()
	}

	c.mu.Lock()
	c.cur = set
	c.mu.Unlock()

	if b, err := json.Marshal(set); err == nil {
		_ = c.store.Set(tokenStorageKey, string(b))
	}
}

// AccessToken returns the current access token, or "" when none is held.
func (c *TokenCache) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.AccessToken
}

// IDToken returns the current id token, or "" when none is held.
func (c *TokenCache) IDToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.IDToken
}

// Current returns a copy of the full token set.
func (c *TokenCache) Current() TokenSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Clear drops the pair from memory and durable storage.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	c.cur = TokenSet{}
	c.mu.Unlock()
	_ = c.store.Delete(tokenStorageKey)
}
