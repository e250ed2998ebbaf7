package config

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(rune('a'+b)), 32)))
}

func setServerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENCRYPTION_KEY", key(0))
	t.Setenv("BLIND_INDEX_KEY", key(1))
}

func TestLoadServerDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setServerEnv(t)

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedirectAllowlist)
	assert.False(t, cfg.GoogleEnabled())

	enc, idx, err := cfg.Keys()
	require.NoError(t, err)
	assert.Len(t, enc, 32)
	assert.NotEqual(t, enc, idx)
}

func TestLoadServerRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	setServerEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadServer()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadServerRejectsShortKey(t *testing.T) {
	t.Chdir(t.TempDir())
	setServerEnv(t)
	t.Setenv("ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	_, err := LoadServer()
	assert.ErrorContains(t, err, "ENCRYPTION_KEY")
}

func TestLoadServerOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setServerEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PUBLIC_URL", "https://api.example/")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://api.example/api/auth/oauth/google/callback", cfg.OAuthCallbackURL("google"))
}

func TestLoadServerRedirectAllowlist(t *testing.T) {
	t.Chdir(t.TempDir())
	setServerEnv(t)
	t.Setenv("AUTH_REDIRECT_ALLOWLIST", "https://app.example,dinlipi://auth")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example", "dinlipi://auth"}, cfg.RedirectAllowlist)

	t.Setenv("AUTH_REDIRECT_ALLOWLIST", "app.example")
	_, err = LoadServer()
	assert.ErrorContains(t, err, "AUTH_REDIRECT_ALLOWLIST")
}

func TestLoadClientHome(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	t.Setenv("DINLIPI_HOME", dir)

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, filepath.Join(dir, "state.db"), cfg.StatePath())
}
