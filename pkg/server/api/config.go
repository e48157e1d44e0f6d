package api

import (
	"time"

	"github.com/lockbook/lockbook-core/internal/bytesize"
)

// Config configures the reference server's HTTP surface: the sync
// protocol endpoints plus the operator-facing admin API.
type Config struct {
	Port         int           `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// DataCapBytes bounds each account's total document storage; zero
	// means unlimited. Accepts human-readable sizes ("10Gi", "500MB") in
	// config files and env vars alike.
	DataCapBytes bytesize.ByteSize `mapstructure:"data_cap_bytes" yaml:"data_cap_bytes"`

	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// AdminConfig configures the operator-facing admin API's single static
// credential and JWT issuer. There is no multi-operator identity store:
// one admin account is enough for a reference deployment.
type AdminConfig struct {
	Username     string        `mapstructure:"username" yaml:"username" validate:"required_with=PasswordHash"`
	PasswordHash string        `mapstructure:"password_hash" yaml:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"omitempty,min=32"`
	TokenTTL     time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl" yaml:"refresh_ttl"`
}

// Enabled reports whether the admin surface has a credential configured.
// A deployment that never sets Admin.PasswordHash simply doesn't mount
// the admin routes, rather than mounting them behind an unusable login.
func (c AdminConfig) Enabled() bool {
	return c.Username != "" && c.PasswordHash != ""
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 15 * time.Minute
	}
	if c.Admin.RefreshTTL == 0 {
		c.Admin.RefreshTTL = 7 * 24 * time.Hour
	}
}
