// Package sessiontest provides an in-process OpenID provider for
// exercising login flows without a real identity provider.
package sessiontest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
)

// IDP is a minimal OpenID provider: discovery, authorize, token, userinfo,
// and JWKS endpoints backed by a fresh RSA key per instance.
type IDP struct {
	ClientID         string
	Audience         string
	Subject          string
	Name             string
	Email            string
	Permissions      []string
	PermissionsClaim string

	// TamperNonce corrupts the id token's nonce claim, simulating a
	// replayed or forged callback.
	TamperNonce bool
	// FailUserInfo makes the userinfo endpoint return a server error,
	// simulating an unreachable provider during silent checks.
	FailUserInfo bool
	// FailToken makes the token endpoint reject every exchange.
	FailToken bool

	server        *httptest.Server
	key           *rsa.PrivateKey
	signer        jose.Signer
	discoveryHits atomic.Int64

	mu    sync.Mutex
	codes map[string]grant
}

type grant struct {
	nonce string
}

// New starts the provider. The server is shut down with the test.
func New(t *testing.T) *IDP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "sessiontest"),
	)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	p := &IDP{
		ClientID:         "test-client",
		Audience:         "drinks-api",
		Subject:          "auth0|user-1",
		Name:             "Test User",
		Email:            "user@example.com",
		PermissionsClaim: "permissions",
		key:              key,
		signer:           signer,
		codes:            make(map[string]grant),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/authorize", p.handleAuthorize)
	mux.HandleFunc("/oauth/token", p.handleToken)
	mux.HandleFunc("/userinfo", p.handleUserInfo)
	mux.HandleFunc("/jwks", p.handleJWKS)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

// Issuer returns the provider's issuer URL.
func (p *IDP) Issuer() string { return p.server.URL }

// DiscoveryCount reports how many discovery requests were served; one per
// process is the expected handshake count.
func (p *IDP) DiscoveryCount() int64 { return p.discoveryHits.Load() }

// Authorize follows an authorization redirect URL and returns the callback
// URL the provider redirects back to.
func (p *IDP) Authorize(t *testing.T, authURL string) *url.URL {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authURL)
	if err != nil {
		t.Fatalf("authorize request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize: expected redirect, got %s", resp.Status)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("authorize: bad redirect location: %v", err)
	}
	return loc
}

// SignToken signs arbitrary claims with the provider's key.
func (p *IDP) SignToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	jws, err := p.signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	raw, err := jws.CompactSerialize()
	if err != nil {
		t.Fatalf("serialize token: %v", err)
	}
	return raw
}

func (p *IDP) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	p.discoveryHits.Add(1)
	writeJSON(w, map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.Issuer() + "/authorize",
		"token_endpoint":                        p.Issuer() + "/oauth/token",
		"userinfo_endpoint":                     p.Issuer() + "/userinfo",
		"jwks_uri":                              p.Issuer() + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *IDP) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")
	if redirectURI == "" || q.Get("client_id") != p.ClientID {
		http.Error(w, "invalid authorization request", http.StatusBadRequest)
		return
	}

	code := randomHex(16)
	p.mu.Lock()
	p.codes[code] = grant{nonce: q.Get("nonce")}
	p.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "bad redirect_uri", http.StatusBadRequest)
		return
	}
	tq := target.Query()
	tq.Set("code", code)
	tq.Set("state", state)
	target.RawQuery = tq.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (p *IDP) handleToken(w http.ResponseWriter, r *http.Request) {
	if p.FailToken {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	p.mu.Lock()
	g, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}

	nonce := g.nonce
	if p.TamperNonce {
		nonce = "tampered-" + nonce
	}

	now := time.Now()
	idClaims := map[string]any{
		"iss":   p.Issuer(),
		"aud":   p.ClientID,
		"sub":   p.Subject,
		"name":  p.Name,
		"email": p.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	accessClaims := map[string]any{
		"iss":              p.Issuer(),
		"aud":              p.Audience,
		"sub":              p.Subject,
		"iat":              now.Unix(),
		"exp":              now.Add(time.Hour).Unix(),
		p.PermissionsClaim: p.Permissions,
	}

	writeJSON(w, map[string]any{
		"access_token": p.mustSign(accessClaims),
		"id_token":     p.mustSign(idClaims),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (p *IDP) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if p.FailUserInfo {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{
		"sub":   p.Subject,
		"name":  p.Name,
		"email": p.Email,
	})
}

func (p *IDP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       p.key.Public(),
		KeyID:     "sessiontest",
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
	writeJSON(w, set)
}

func (p *IDP) mustSign(claims map[string]any) string {
	payload, err := json.Marshal(claims)
	if err != nil {
		panic(err)
	}
	jws, err := p.signer.Sign(payload)
	if err != nil {
		panic(err)
	}
	raw, err := jws.CompactSerialize()
	if err != nil {
		panic(err)
	}
	return raw
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
