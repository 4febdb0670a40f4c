package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "APP_ADDR", "APP_REDIRECT_ADDR", "TLS_CERT_FILE", "TLS_KEY_FILE",
		"JWT_SECRET", "JWT_ISSUER", "APP_BASE_URL", "CORS_ORIGIN", "SMTP_HOST", "SMTP_PORT",
		"SMTP_USER", "SMTP_PASS", "SMTP_SENDER", "REDIS_URL", "STORE_DRIVER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingSecretIsFatal(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingSigningSecret)
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr)
	assert.Equal(t, "team_app", cfg.JWTIssuer)
	assert.Equal(t, "https://localhost:4000", cfg.BaseURL)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.False(t, cfg.TLSEnabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "identity.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = "127.0.0.1:8443"
jwt_secret = "from-file"
tls_cert_file = "cert.pem"
tls_key_file = "key.pem"

[smtp]
host = "smtp.example.com"
sender = "noreply@example.com"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8443", cfg.Addr)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.TLSEnabled())
}

func TestLoad_BadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("SMTP_PORT", "twenty")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("SMTP_PORT", "")
	t.Setenv("STORE_DRIVER", "mongo")
	_, err = Load()
	require.Error(t, err)
}
