package session

import "testing"

func TestCanFailsClosedWithoutTokens(t *testing.T) {
	eval := NewEvaluator(NewTokenCache(NewMemoryStore()), "")
	if eval.Can("get:drinks-detail") {
		t.Fatalf("expected false with no tokens")
	}
}

func TestCanFailsClosedOnMalformedToken(t *testing.T) {
	cache := NewTokenCache(NewMemoryStore())
	cache.SetTokens("garbage", "also.garbage")

	eval := NewEvaluator(cache, "")
	if eval.Can("get:drinks-detail") {
		t.Fatalf("expected false for undecodable tokens")
	}
}

func TestCanFailsClosedOnMissingClaim(t *testing.T) {
	cache := NewTokenCache(NewMemoryStore())
	cache.SetTokens(makeToken(t, map[string]any{"sub": "u"}), makeToken(t, map[string]any{"sub": "u"}))

	eval := NewEvaluator(cache, "")
	if eval.Can("get:drinks-detail") {
		t.Fatalf("expected false when permissions claim is missing")
	}
}

func TestCanExactMembership(t *testing.T) {
	cache := NewTokenCache(NewMemoryStore())
	access := makeToken(t, map[string]any{
		"sub":         "u",
		"permissions": []string{"get:drinks-detail"},
	})
	cache.SetTokens(access, makeToken(t, map[string]any{"sub": "u"}))

	eval := NewEvaluator(cache, "")
	if !eval.Can("get:drinks-detail") {
		t.Fatalf("expected membership to grant the capability")
	}
	if eval.Can("post:drinks") {
		t.Fatalf("expected absent permission to be denied")
	}
	if eval.Can("get:drinks") {
		t.Fatalf("expected prefix of a permission to be denied")
	}
}

func TestCanPrefersAccessTokenClaims(t *testing.T) {
	cache := NewTokenCache(NewMemoryStore())
	access := makeToken(t, map[string]any{"permissions": []string{"post:drinks"}})
	id := makeToken(t, map[string]any{"permissions": []string{"get:drinks-detail"}})
	cache.SetTokens(access, id)

	eval := NewEvaluator(cache, "")
	if !eval.Can("post:drinks") {
		t.Fatalf("expected access-token permissions to win")
	}
	if eval.Can("get:drinks-detail") {
		t.Fatalf("expected id-token permissions to be shadowed")
	}
}

func TestCanFallsBackToIDToken(t *testing.T) {
	cache := NewTokenCache(NewMemoryStore())
	// Opaque access token, permissions only in the id token.
	id := makeToken(t, map[string]any{"permissions": []string{"get:drinks-detail"}})
	cache.SetTokens("opaque-access-token", id)

	eval := NewEvaluator(cache, "")
	if !eval.Can("get:drinks-detail") {
		t.Fatalf("expected fallback to id token claims")
	}
}

func TestCanNamespacedClaimKey(t *testing.T) {
	const key = "https://drinks.example.com/permissions"
	cache := NewTokenCache(NewMemoryStore())
	cache.SetTokens(makeToken(t, map[string]any{key: []string{"get:drinks-detail"}}), "")

	eval := NewEvaluator(cache, key)
	if !eval.Can("get:drinks-detail") {
		t.Fatalf("expected namespaced claim key to be honoured")
	}
}

func TestCanInvalidatesOnTokenReplacement(t *testing.T) {
	cache := NewTokenCache(NewMemoryStore())
	cache.SetTokens(makeToken(t, map[string]any{"permissions": []string{"get:drinks-detail"}}), "")

	eval := NewEvaluator(cache, "")
	if !eval.Can("get:drinks-detail") {
		t.Fatalf("expected capability before replacement")
	}

	cache.SetTokens(makeToken(t, map[string]any{"permissions": []string{}}), "")
	if eval.Can("get:drinks-detail") {
		t.Fatalf("expected capability revoked after token replacement")
	}

	cache.Clear()
	if eval.Can("get:drinks-detail") {
		t.Fatalf("expected capability revoked after clear")
	}
}
