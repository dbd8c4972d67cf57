package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"baristad/drinks"
)

// App bundles the runtime dependencies of the session daemon.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Store    Store
	Provider *Provider
	Tokens   *TokenCache
	Nonces   *NonceGuard
	State    *StateStore
	Callback *CallbackHandler
	Eval     *Evaluator
	Metrics  *Metrics
	Drinks   *drinks.Client
}

// NewApp wires the application state from configuration. The identity
// provider itself stays uninitialized until first use.
func NewApp(cfg Config, logger *slog.Logger) (*App, error) {
	var store Store
	if cfg.Server.StoragePath != "" {
		fs, err := NewFileStore(cfg.Server.StoragePath)
		if err != nil {
			return nil, err
		}
		store = fs
	} else {
		store = NewMemoryStore()
	}

	metrics := NewMetrics()
	provider := NewProvider(cfg.Provider, logger)
	tokens := NewTokenCache(store)
	nonces := NewNonceGuard(store)
	state := NewStateStore(provider, tokens, nonces, logger, metrics)
	callback := NewCallbackHandler(provider, state, nonces, logger, metrics, cfg.Server.DefaultRoute)
	eval := NewEvaluator(tokens, cfg.Provider.PermissionsClaim)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Provider: provider,
		Tokens:   tokens,
		Nonces:   nonces,
		State:    state,
		Callback: callback,
		Eval:     eval,
		Metrics:  metrics,
	}
	if cfg.API.BaseURL != "" {
		app.Drinks = drinks.NewClient(cfg.API.BaseURL, tokens.AccessToken)
	}
	return app, nil
}

// Bootstrap runs the boot-time silent session check.
func (a *App) Bootstrap(ctx context.Context) {
	a.State.Bootstrap(ctx)
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	returnPath := sanitizeReturnPath(r.URL.Query().Get("return_to"))

	loginURL, err := a.State.LoginURL(r.Context(), returnPath)
	if err != nil {
		a.Logger.Error("login unavailable", "error", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}

func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	res := a.Callback.Handle(r.Context(), r.URL.Query())
	target := res.RedirectTo
	if target == "" {
		target = a.Config.Server.DefaultRoute
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	returnTo := sanitizeReturnPath(r.URL.Query().Get("return_to"))
	if returnTo == "" {
		returnTo = a.Config.Server.DefaultRoute
	}
	logoutURL := a.State.Logout(returnTo)
	http.Redirect(w, r, logoutURL, http.StatusFound)
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Profile       *Profile   `json:"profile,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Callback      string     `json:"callback_state"`
}

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		Authenticated: a.State.IsAuthenticated(),
		Callback:      a.Callback.State().String(),
	}
	if resp.Authenticated {
		p := a.State.Profile()
		resp.Profile = &p
		if exp := a.Tokens.Current().ExpiresAt; !exp.IsZero() {
			resp.ExpiresAt = &exp
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleCan(w http.ResponseWriter, r *http.Request) {
	permission := r.URL.Query().Get("permission")
	if permission == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "permission parameter required"})
		return
	}
	allowed := a.Eval.Can(permission)
	if !allowed && a.State.IsAuthenticated() {
		a.Metrics.CapabilityDenials.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (a *App) handleDrinks(w http.ResponseWriter, r *http.Request) {
	if a.Drinks == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "catalog api not configured"})
		return
	}
	list, err := a.Drinks.Drinks(r.Context())
	if err != nil {
		a.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "drinks": list})
}

// handleDrinkDetail serves the long-form catalog, gated on the
// get:drinks-detail capability. Unauthenticated and unauthorized sessions
// are distinguished for the caller.
func (a *App) handleDrinkDetail(w http.ResponseWriter, r *http.Request) {
	if a.Drinks == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "catalog api not configured"})
		return
	}
	if !a.State.IsAuthenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	if !a.Eval.Can(drinks.PermissionDetail) {
		a.Metrics.CapabilityDenials.Inc()
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "permission not found"})
		return
	}

	list, err := a.Drinks.DrinkDetails(r.Context())
	if err != nil {
		a.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "drinks": list})
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) catalogError(w http.ResponseWriter, err error) {
	a.Logger.Warn("catalog request failed", "error", err)
	status := http.StatusBadGateway
	if errors.Is(err, drinks.ErrUnauthorized) {
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sanitizeReturnPath accepts only absolute in-app paths, rejecting
// protocol-relative and external targets.
func sanitizeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return ""
	}
	return p
}
