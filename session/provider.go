package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider materializes the single shared identity-provider client. The
// first caller triggers discovery; every concurrent and subsequent caller
// shares that one result, success or failure. A cached failure is
// re-surfaced until the process restarts, since the configuration is
// static and a retry would not change the outcome.
type Provider struct {
	cfg    ProviderConfig
	logger *slog.Logger

	once   sync.Once
	client *Client
	err    error
}

// NewProvider prepares a lazy provider. No network activity happens until
// the first Client call.
func NewProvider(cfg ProviderConfig, logger *slog.Logger) *Provider {
	return &Provider{cfg: cfg, logger: logger}
}

// Client returns the shared identity-provider client, initializing it on
// first access. The first caller's context governs discovery.
func (p *Provider) Client(ctx context.Context) (*Client, error) {
	p.once.Do(func() {
		p.client, p.err = p.initialize(ctx)
		if p.err != nil {
			p.logger.Error("identity provider initialization failed", "issuer", p.cfg.IssuerURL(), "error", p.err)
		}
	})
	return p.client, p.err
}

func (p *Provider) initialize(ctx context.Context) (*Client, error) {
	op, err := oidc.NewProvider(ctx, p.cfg.IssuerURL())
	if err != nil {
		return nil, fmt.Errorf("%w: discover %s: %v", ErrInitialization, p.cfg.IssuerURL(), err)
	}

	endpoint := op.Endpoint()
	if p.cfg.ClientSecret == "" {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	oauthCfg := oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       p.cfg.Scopes,
	}

	verifier := op.Verifier(&oidc.Config{ClientID: p.cfg.ClientID})

	p.logger.Info("identity provider initialized", "issuer", p.cfg.IssuerURL())
	return &Client{cfg: p.cfg, provider: op, oauth: oauthCfg, verifier: verifier}, nil
}

// Client is the initialized connection to the identity provider.
type Client struct {
	cfg      ProviderConfig
	provider *oidc.Provider
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// AuthCodeURL builds the authorization redirect carrying state, the local
// nonce, and the configured audience.
func (c *Client) AuthCodeURL(state, nonce string) string {
	opts := []oauth2.AuthCodeOption{oidc.Nonce(nonce)}
	if c.cfg.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.cfg.Audience))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// Exchange redeems an authorization code for a token set and the verified
// id token's claims.
func (c *Client) Exchange(ctx context.Context, code string) (TokenSet, Claims, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return TokenSet{}, nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return TokenSet{}, nil, fmt.Errorf("%w: id_token missing in response", ErrExchange)
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return TokenSet{}, nil, fmt.Errorf("%w: verify id_token: %v", ErrExchange, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return TokenSet{}, nil, fmt.Errorf("%w: parse claims: %v", ErrExchange, err)
	}

	return TokenSet{AccessToken: tok.AccessToken, IDToken: rawIDToken}, Claims(claims), nil
}

// UserInfo fetches the user profile backing the current access token. A
// transport failure is reported as ErrNetwork; the caller denies the
// affected check rather than treating unknown as authenticated.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (Profile, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	ui, err := c.provider.UserInfo(ctx, src)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: userinfo: %v", ErrNetwork, err)
	}

	var claims map[string]any
	if err := ui.Claims(&claims); err != nil {
		return Profile{}, fmt.Errorf("%w: parse userinfo: %v", ErrNetwork, err)
	}

	profile := profileFromClaims(Claims(claims))
	if profile.Subject == "" {
		profile.Subject = ui.Subject
	}
	return profile, nil
}

// LogoutURL builds the provider-side logout redirect.
func (c *Client) LogoutURL(returnTo string) string {
	return c.cfg.LogoutURL(returnTo)
}
