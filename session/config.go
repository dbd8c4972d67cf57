package session

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the YAML file and env overrides.
const (
	DefaultListenAddr       = "127.0.0.1:8600"
	DefaultStoragePath      = ".baristad/session.json"
	DefaultDefaultRoute     = "/"
	DefaultPermissionsClaim = "permissions"
)

// Config captures the full daemon configuration loaded from YAML with
// environment overrides.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	API      APIConfig      `yaml:"api"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	ListenAddr       string    `yaml:"listen_addr"`
	DevMode          bool      `yaml:"dev_mode"`
	StoragePath      string    `yaml:"storage_path"`
	DefaultRoute     string    `yaml:"default_route"`
	ClientOriginURLs []string  `yaml:"client_origin_urls"`
	TLS              TLSConfig `yaml:"tls"`
}

// TLSConfig defines autocert behaviour for production serving.
type TLSConfig struct {
	Domains  []string `yaml:"domains"`
	Email    string   `yaml:"email"`
	CacheDir string   `yaml:"cache_dir"`
}

// ProviderConfig is the static identity-provider configuration. It never
// changes within one process lifetime, which is why a failed client
// initialization is not retried.
type ProviderConfig struct {
	Domain           string   `yaml:"domain"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	Audience         string   `yaml:"audience"`
	RedirectURI      string   `yaml:"redirect_uri"`
	Scopes           []string `yaml:"scopes"`
	PermissionsClaim string   `yaml:"permissions_claim"`
}

// APIConfig locates the downstream drinks catalog API.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

// IssuerURL derives the OIDC issuer from the configured domain. A bare
// domain gets the https scheme and trailing slash the provider's discovery
// document uses; a full URL (test providers) passes through unchanged.
func (p ProviderConfig) IssuerURL() string {
	if strings.Contains(p.Domain, "://") {
		return strings.TrimSuffix(p.Domain, "/")
	}
	return "https://" + strings.TrimSuffix(p.Domain, "/") + "/"
}

// LogoutURL builds the provider-side session termination URL.
func (p ProviderConfig) LogoutURL(returnTo string) string {
	q := url.Values{"client_id": {p.ClientID}}
	if returnTo != "" {
		q.Set("returnTo", returnTo)
	}
	return strings.TrimSuffix(p.IssuerURL(), "/") + "/v2/logout?" + q.Encode()
}

// LoadConfig reads the YAML config file and merges environment overrides.
// An empty path loads defaults plus overrides only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(b)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns the configuration template.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:   DefaultListenAddr,
			DevMode:      true,
			StoragePath:  DefaultStoragePath,
			DefaultRoute: DefaultDefaultRoute,
		},
		Provider: ProviderConfig{
			Scopes:           []string{"openid", "profile", "email"},
			PermissionsClaim: DefaultPermissionsClaim,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"BARISTAD_LISTEN_ADDR":       func(v string) { cfg.Server.ListenAddr = v },
		"BARISTAD_DEV_MODE":          func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"BARISTAD_STORAGE_PATH":      func(v string) { cfg.Server.StoragePath = v },
		"BARISTAD_DEFAULT_ROUTE":     func(v string) { cfg.Server.DefaultRoute = v },
		"BARISTAD_CLIENT_ORIGINS":    func(v string) { cfg.Server.ClientOriginURLs = splitAndTrim(v) },
		"AUTH0_DOMAIN":               func(v string) { cfg.Provider.Domain = v },
		"AUTH0_CLIENT_ID":            func(v string) { cfg.Provider.ClientID = v },
		"AUTH0_CLIENT_SECRET":        func(v string) { cfg.Provider.ClientSecret = v },
		"API_AUDIENCE":               func(v string) { cfg.Provider.Audience = v },
		"BARISTAD_REDIRECT_URI":      func(v string) { cfg.Provider.RedirectURI = v },
		"BARISTAD_SCOPES":            func(v string) { cfg.Provider.Scopes = splitAndTrim(v) },
		"BARISTAD_PERMISSIONS_CLAIM": func(v string) { cfg.Provider.PermissionsClaim = v },
		"API_SERVER_URL":             func(v string) { cfg.API.BaseURL = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

// Validate performs sanity checks on the merged configuration.
func (c Config) Validate() error {
	if c.Provider.Domain == "" {
		return errors.New("provider.domain is required")
	}
	if c.Provider.ClientID == "" {
		return errors.New("provider.client_id is required")
	}
	if c.Provider.RedirectURI == "" {
		return errors.New("provider.redirect_uri is required")
	}
	if !strings.HasPrefix(c.Provider.RedirectURI, "http://") && !strings.HasPrefix(c.Provider.RedirectURI, "https://") {
		return fmt.Errorf("provider.redirect_uri must be an http(s) URL, got: %s", c.Provider.RedirectURI)
	}
	if !strings.HasPrefix(c.Server.DefaultRoute, "/") {
		return fmt.Errorf("server.default_route must be an absolute path, got: %s", c.Server.DefaultRoute)
	}
	if c.API.BaseURL != "" && !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got: %s", c.API.BaseURL)
	}
	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		return errors.New("server.tls.domains must be provided in production")
	}
	return nil
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
