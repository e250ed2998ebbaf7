package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"dinlipi/internal/crypto"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server is the API server configuration, read from the environment.
type Server struct {
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	Port            int           `envconfig:"PORT" default:"8080"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development"`
	EncryptionKey   string        `envconfig:"ENCRYPTION_KEY" required:"true"`
	BlindIndexKey   string        `envconfig:"BLIND_INDEX_KEY" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"1h"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`
	PublicURL       string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	GoogleClientID  string        `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleSecret    string        `envconfig:"GOOGLE_CLIENT_SECRET"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS"`

	// RedirectAllowlist holds extra origins (scheme://host) that password
	// reset and OAuth links may send users back to. PublicURL is always allowed.
	RedirectAllowlist []string `envconfig:"AUTH_REDIRECT_ALLOWLIST"`
}

// LoadServer reads .env when present and then the process environment.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Server) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	if err := checkOrigin("PUBLIC_URL", c.PublicURL); err != nil {
		return err
	}
	for _, o := range c.RedirectAllowlist {
		if err := checkOrigin("AUTH_REDIRECT_ALLOWLIST", o); err != nil {
			return err
		}
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{strings.TrimRight(c.PublicURL, "/")}
	}
	return nil
}

func checkOrigin(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute URL", name, raw)
	}
	return nil
}

// Keys decodes the at-rest encryption key and the blind index key.
func (c *Server) Keys() (enc, idx []byte, err error) {
	if enc, err = crypto.DecodeKey(c.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	if idx, err = crypto.DecodeKey(c.BlindIndexKey); err != nil {
		return nil, nil, fmt.Errorf("BLIND_INDEX_KEY: %w", err)
	}
	return enc, idx, nil
}

func (c *Server) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func (c *Server) IsProduction() bool { return c.Environment == EnvProduction }

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Server) GoogleEnabled() bool { return c.GoogleClientID != "" && c.GoogleSecret != "" }

// OAuthCallbackURL is the redirect URL registered with the OAuth provider.
func (c *Server) OAuthCallbackURL(provider string) string {
	return strings.TrimRight(c.PublicURL, "/") + "/api/auth/oauth/" + provider + "/callback"
}

// Client is the CLI configuration.
type Client struct {
	APIURL string `envconfig:"DINLIPI_API_URL" default:"http://localhost:8080"`
	Home   string `envconfig:"DINLIPI_HOME"`
}

func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	var cfg Client
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Home = filepath.Join(home, ".dinlipi")
	}
	return &cfg, nil
}

// StatePath is the local state database file.
func (c *Client) StatePath() string { return filepath.Join(c.Home, "state.db") }
