package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

// CallbackState tracks the redirect machine's progress.
type CallbackState int

const (
	CallbackIdle CallbackState = iota
	CallbackDetecting
	CallbackExchanging
	CallbackVerifying
	CallbackSuccess
	CallbackFailure
)

func (s CallbackState) String() string {
	switch s {
	case CallbackIdle:
		return "idle"
	case CallbackDetecting:
		return "detecting"
	case CallbackExchanging:
		return "exchanging"
	case CallbackVerifying:
		return "verifying"
	case CallbackSuccess:
		return "success"
	case CallbackFailure:
		return "failure"
	}
	return "unknown"
}

// CallbackResult reports the resolution of a callback inspection and where
// the application should navigate next.
type CallbackResult struct {
	State      CallbackState
	RedirectTo string
	Err        error
}

// CallbackHandler detects an in-flight authorization response, exchanges
// the code for tokens, verifies the nonce, and updates session state. An
// authorization response is processed at most once per process; later
// navigations that happen to carry the same query parameters resolve to
// the already-reached terminal state without re-exchanging.
type CallbackHandler struct {
	provider     *Provider
	store        *StateStore
	nonces       *NonceGuard
	logger       *slog.Logger
	metrics      *Metrics
	defaultRoute string

	mu       sync.Mutex
	state    CallbackState
	consumed bool
}

// NewCallbackHandler wires the machine in its Idle state.
func NewCallbackHandler(provider *Provider, store *StateStore, nonces *NonceGuard, logger *slog.Logger, metrics *Metrics, defaultRoute string) *CallbackHandler {
	if defaultRoute == "" {
		defaultRoute = "/"
	}
	return &CallbackHandler{
		provider:     provider,
		store:        store,
		nonces:       nonces,
		logger:       logger,
		metrics:      metrics,
		defaultRoute: defaultRoute,
	}
}

// State returns the machine's current state.
func (h *CallbackHandler) State() CallbackState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Handle inspects query for an authorization response. Absent both a code
// and a state parameter the machine stays Idle and nothing else happens.
func (h *CallbackHandler) Handle(ctx context.Context, query url.Values) CallbackResult {
	h.mu.Lock()
	if h.consumed {
		state := h.state
		h.mu.Unlock()
		return CallbackResult{State: state, RedirectTo: h.defaultRoute}
	}
	h.state = CallbackDetecting

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.state = CallbackIdle
		h.mu.Unlock()
		return CallbackResult{State: CallbackIdle}
	}
	h.consumed = true
	h.mu.Unlock()

	pending, ok := h.store.consumePending(state)
	if !ok {
		return h.fail("unknown_state", fmt.Errorf("%w: unknown state value", ErrExchange))
	}

	h.setState(CallbackExchanging)
	client, err := h.provider.Client(ctx)
	if err != nil {
		return h.fail("init", err)
	}

	tokens, claims, err := client.Exchange(ctx, code)
	if err != nil {
		return h.fail("exchange", err)
	}

	h.setState(CallbackVerifying)
	if pending.Nonce != "" {
		if !h.nonces.VerifyAndConsume(claims.Nonce()) {
			return h.fail("nonce", ErrNonceMismatch)
		}
	}

	h.store.completeLogin(tokens, profileFromClaims(claims))
	h.setState(CallbackSuccess)
	h.metrics.CallbackOutcomes.WithLabelValues("success").Inc()
	h.logger.Info("login completed", "sub", claims.str("sub"))

	target := pending.ReturnPath
	if target == "" {
		target = h.defaultRoute
	}
	return CallbackResult{State: CallbackSuccess, RedirectTo: target}
}

// fail resolves the machine to its failure state: tokens are not written,
// the session stays unauthenticated, and navigation falls back to the
// default route.
func (h *CallbackHandler) fail(reason string, err error) CallbackResult {
	h.store.setUnauthenticated()
	h.setState(CallbackFailure)
	h.metrics.CallbackOutcomes.WithLabelValues(reason).Inc()
	h.logger.Warn("login callback failed", "reason", reason, "error", err)
	return CallbackResult{State: CallbackFailure, RedirectTo: h.defaultRoute, Err: err}
}

func (h *CallbackHandler) setState(s CallbackState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}
