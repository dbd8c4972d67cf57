package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Profile describes the authenticated user as asserted by the provider.
type Profile struct {
	Subject string `json:"sub,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

func profileFromClaims(claims Claims) Profile {
	p := Profile{
		Subject: claims.str("sub"),
		Name:    claims.str("name"),
		Email:   claims.str("email"),
		Picture: claims.str("picture"),
	}
	if p.Name == "" {
		p.Name = claims.str("nickname")
	}
	return p
}

type pendingLogin struct {
	Nonce      string
	ReturnPath string
	CreatedAt  time.Time
}

// StateStore owns the session's observable authentication state. It is the
// sole writer of the isAuthenticated and profile signals; every other
// component reads them.
type StateStore struct {
	provider *Provider
	cache    *TokenCache
	nonces   *NonceGuard
	logger   *slog.Logger
	metrics  *Metrics

	authenticated *Signal[bool]
	profile       *Signal[Profile]

	mu      sync.Mutex
	pending map[string]pendingLogin
}

// NewStateStore wires the store to its collaborators. The initial state is
// unauthenticated; Bootstrap resolves the real state asynchronously, so the
// very first read is not authoritative until the provider is ready.
func NewStateStore(provider *Provider, cache *TokenCache, nonces *NonceGuard, logger *slog.Logger, metrics *Metrics) *StateStore {
	return &StateStore{
		provider:      provider,
		cache:         cache,
		nonces:        nonces,
		logger:        logger,
		metrics:       metrics,
		authenticated: NewSignal(false),
		profile:       NewSignal(Profile{}),
		pending:       make(map[string]pendingLogin),
	}
}

// IsAuthenticated returns the current authentication state.
func (s *StateStore) IsAuthenticated() bool { return s.authenticated.Get() }

// Profile returns the current user profile; the zero value when
// unauthenticated.
func (s *StateStore) Profile() Profile { return s.profile.Get() }

// SubscribeAuthenticated observes subsequent authentication changes.
func (s *StateStore) SubscribeAuthenticated() (<-chan bool, func()) {
	return s.authenticated.Subscribe()
}

// SubscribeProfile observes subsequent profile changes.
func (s *StateStore) SubscribeProfile() (<-chan Profile, func()) {
	return s.profile.Subscribe()
}

// Bootstrap performs the boot-time silent session check: a stored,
// unexpired token pair counts as an existing session, confirmed by a
// profile fetch. Any failure leaves the session unauthenticated without
// clearing a still-valid token pair.
func (s *StateStore) Bootstrap(ctx context.Context) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		s.metrics.SilentChecks.WithLabelValues("init_failed").Inc()
		return
	}

	cur := s.cache.Current()
	if cur.AccessToken == "" {
		s.metrics.SilentChecks.WithLabelValues("no_session").Inc()
		return
	}
	if !cur.ExpiresAt.IsZero() && time.Now().After(cur.ExpiresAt) {
		s.logger.Info("stored session expired")
		s.cache.Clear()
		s.metrics.SilentChecks.WithLabelValues("expired").Inc()
		return
	}

	profile, err := client.UserInfo(ctx, cur.AccessToken)
	if err != nil {
		// Unknown is treated as denied for this check, not as authenticated.
		s.logger.Warn("silent session check failed", "error", err)
		s.metrics.SilentChecks.WithLabelValues("denied").Inc()
		return
	}

	s.metrics.SilentChecks.WithLabelValues("restored").Inc()
	s.logger.Info("session restored", "sub", profile.Subject)
	s.setAuthenticated(profile)
}

// LoginURL begins a redirect login. It issues a fresh nonce (abandoning any
// outstanding attempt) and records returnPath against the state value so
// the pre-login navigation target survives the round trip.
func (s *StateStore) LoginURL(ctx context.Context, returnPath string) (string, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return "", err
	}

	nonce, err := s.nonces.Issue()
	if err != nil {
		return "", err
	}

	state, err := randomToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pending[state] = pendingLogin{Nonce: nonce, ReturnPath: returnPath, CreatedAt: time.Now()}
	s.mu.Unlock()

	s.metrics.LoginsStarted.Inc()
	return client.AuthCodeURL(state, nonce), nil
}

// Logout ends the provider-side session and clears local state. It returns
// the provider logout URL; navigating there is the caller's concern.
func (s *StateStore) Logout(returnTo string) string {
	s.cache.Clear()
	s.setUnauthenticated()
	s.logger.Info("logged out")
	return s.provider.cfg.LogoutURL(returnTo)
}

// consumePending redeems the record for a returned state value.
func (s *StateStore) consumePending(state string) (pendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	if ok {
		delete(s.pending, state)
	}
	return p, ok
}

// completeLogin writes the exchanged tokens and flips the session to
// authenticated. Called by the callback handler only.
func (s *StateStore) completeLogin(tokens TokenSet, profile Profile) {
	s.cache.SetTokens(tokens.AccessToken, tokens.IDToken)
	s.setAuthenticated(profile)
}

func (s *StateStore) setAuthenticated(p Profile) {
	s.profile.set(p)
	s.authenticated.set(true)
}

func (s *StateStore) setUnauthenticated() {
	s.authenticated.set(false)
	s.profile.set(Profile{})
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
