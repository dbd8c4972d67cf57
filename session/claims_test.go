package session

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

// makeToken builds an unsigned three-segment token for decode tests.
func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := map[string]any{"alg": "none", "typ": "JWT"}
	return encodeSegment(t, header) + "." + encodeSegment(t, claims) + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

func encodeSegment(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal segment: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestDecodeClaimsValidToken(t *testing.T) {
	token := makeToken(t, map[string]any{
		"sub":         "auth0|abc",
		"nonce":       "n-1",
		"exp":         float64(1900000000),
		"permissions": []string{"get:drinks-detail"},
	})

	claims, ok := DecodeClaims(token)
	if !ok {
		t.Fatalf("expected claims to decode")
	}
	if got := claims.str("sub"); got != "auth0|abc" {
		t.Fatalf("unexpected sub: %q", got)
	}
	if got := claims.Nonce(); got != "n-1" {
		t.Fatalf("unexpected nonce: %q", got)
	}
	if got := claims.Expiry(); !got.Equal(time.Unix(1900000000, 0)) {
		t.Fatalf("unexpected expiry: %v", got)
	}
	perms := claims.StringSlice("permissions")
	if len(perms) != 1 || perms[0] != "get:drinks-detail" {
		t.Fatalf("unexpected permissions: %v", perms)
	}
}

func TestDecodeClaimsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"one segment":       "abc",
		"two segments":      "abc.def",
		"four segments":     "a.b.c.d",
		"bad base64":        "a.!!!not-base64!!!.c",
		"payload not json":  "e30." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".x",
		"header not base64": "!!." + encodeSegmentRaw(`{}`) + ".x",
	}

	for name, token := range cases {
		if claims, ok := DecodeClaims(token); ok {
			t.Fatalf("%s: expected absent claims, got %v", name, claims)
		}
	}
}

func encodeSegmentRaw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestClaimsAccessorsAbsent(t *testing.T) {
	claims := Claims{}
	if claims.Nonce() != "" {
		t.Fatalf("expected empty nonce")
	}
	if !claims.Expiry().IsZero() {
		t.Fatalf("expected zero expiry")
	}
	if claims.StringSlice("permissions") != nil {
		t.Fatalf("expected nil permissions")
	}
}

func TestClaimsStringSliceAnySlice(t *testing.T) {
	claims := Claims{"permissions": []any{"a", "b", 3, "c"}}
	got := claims.StringSlice("permissions")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected slice: %v", got)
	}
}
