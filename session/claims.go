package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload segment of a token. Decoding is local and
// unverified; it informs UI state and capability checks only and never
// substitutes for the backend's own verification.
type Claims map[string]any

// DecodeClaims splits token into its dot-delimited segments, base64url
// decodes the payload, and parses it as JSON. Any malformation (wrong
// segment count, bad encoding, bad structure) yields (nil, false) so every
// caller has a single "no claims" failure path.
func DecodeClaims(token string) (Claims, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return Claims(claims), true
}

// Nonce returns the nonce claim, or "" when absent.
func (c Claims) Nonce() string {
	s, _ := c["nonce"].(string)
	return s
}

// Expiry returns the exp claim as a time, or the zero time when absent or
// malformed.
func (c Claims) Expiry() time.Time {
	switch v := c["exp"].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// StringSlice reads key as a list of strings, tolerating both []string and
// the []any produced by JSON decoding. Absent or malformed yields nil.
func (c Claims) StringSlice(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (c Claims) str(key string) string {
	s, _ := c[key].(string)
	return s
}
