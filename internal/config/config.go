// Package config resolves the process-wide settings once at startup:
// defaults, then an optional TOML file named by CONFIG_FILE, then the
// environment. The result is passed explicitly to the components that
// need it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrMissingSigningSecret is fatal: the process must not start without it.
var ErrMissingSigningSecret = errors.New("config: JWT_SECRET missing")

type SMTP struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	User   string `toml:"user"`
	Pass   string `toml:"pass"`
	Sender string `toml:"sender"`
}

type Config struct {
	Addr         string `toml:"addr"`
	RedirectAddr string `toml:"redirect_addr"`
	TLSCertFile  string `toml:"tls_cert_file"`
	TLSKeyFile   string `toml:"tls_key_file"`

	JWTSecret string `toml:"jwt_secret"`
	JWTIssuer string `toml:"jwt_issuer"`

	// BaseURL is the front-end origin used to build links in emails.
	BaseURL    string `toml:"base_url"`
	CORSOrigin string `toml:"cors_origin"`

	SMTP SMTP `toml:"smtp"`

	RedisURL    string `toml:"redis_url"`
	StoreDriver string `toml:"store_driver"`
}

func (c *Config) LoadDefaults() {
	c.Addr = "0.0.0.0:3000"
	c.JWTIssuer = "team_app"
	c.BaseURL = "https://localhost:4000"
	c.CORSOrigin = "https://localhost:4000"
	c.SMTP.Port = 587
	c.StoreDriver = "postgres"
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSigningSecret
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(c *Config) error {
	str := map[string]*string{
		"APP_ADDR":          &c.Addr,
		"APP_REDIRECT_ADDR": &c.RedirectAddr,
		"TLS_CERT_FILE":     &c.TLSCertFile,
		"TLS_KEY_FILE":      &c.TLSKeyFile,
		"JWT_SECRET":        &c.JWTSecret,
		"JWT_ISSUER":        &c.JWTIssuer,
		"APP_BASE_URL":      &c.BaseURL,
		"CORS_ORIGIN":       &c.CORSOrigin,
		"SMTP_HOST":         &c.SMTP.Host,
		"SMTP_USER":         &c.SMTP.User,
		"SMTP_PASS":         &c.SMTP.Pass,
		"SMTP_SENDER":       &c.SMTP.Sender,
		"REDIS_URL":         &c.RedisURL,
		"STORE_DRIVER":      &c.StoreDriver,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SMTP_PORT: %w", err)
		}
		c.SMTP.Port = port
	}
	return nil
}
