package session

import "sync"

// Evaluator answers "can the current session perform X" from locally
// decoded token claims. It is synchronous, never errors, and fails closed:
// absent claims or a missing permissions claim mean no capability.
//
// The access token is the authoritative permission source (that is where
// the provider's RBAC places them), with the id token as fallback. The
// claim key is configurable to cover namespaced variants.
type Evaluator struct {
	cache    *TokenCache
	claimKey string

	mu      sync.Mutex
	decoded string // token the cached set was derived from
	permSet map[string]struct{}
}

// NewEvaluator binds an evaluator to the token cache. claimKey names the
// claim holding the permission list; empty means "permissions".
func NewEvaluator(cache *TokenCache, claimKey string) *Evaluator {
	if claimKey == "" {
		claimKey = "permissions"
	}
	return &Evaluator{cache: cache, claimKey: claimKey}
}

// Can reports whether permission is a member of the current session's
// permission set. Comparison is exact string equality.
func (e *Evaluator) Can(permission string) bool {
	set := e.permissions()
	_, ok := set[permission]
	return ok
}

func (e *Evaluator) permissions() map[string]struct{} {
	token := e.sourceToken()

	e.mu.Lock()
	defer e.mu.Unlock()
	if token == e.decoded && e.permSet != nil {
		return e.permSet
	}

	set := make(map[string]struct{})
	if claims, ok := DecodeClaims(token); ok {
		for _, p := range claims.StringSlice(e.claimKey) {
			set[p] = struct{}{}
		}
	}
	e.decoded = token
	e.permSet = set
	return set
}

// sourceToken picks the token whose claims carry the permission list,
// preferring the access token when it both decodes and contains the claim.
func (e *Evaluator) sourceToken() string {
	access := e.cache.AccessToken()
	if claims, ok := DecodeClaims(access); ok {
		if _, present := claims[e.claimKey]; present {
			return access
		}
	}
	return e.cache.IDToken()
}
