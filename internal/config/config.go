package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSecretLength is the minimum HS256 signing secret length in bytes.
const MinSecretLength = 32

// Config holds the application configuration.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	// Empty DSN runs on in-memory stores.
	PGDSN    string `mapstructure:"pg_dsn"`
	LogLevel string `mapstructure:"log_level"`

	Auth  AuthConfig  `mapstructure:"auth"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	Audit AuditConfig `mapstructure:"audit"`
}

type AuthConfig struct {
	Secret      string        `mapstructure:"secret"`
	Issuer      string        `mapstructure:"issuer"`
	AccessTTL   time.Duration `mapstructure:"access_ttl"`
	RefreshTTL  time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
	DefaultRole string        `mapstructure:"default_role"`
}

type HTTPConfig struct {
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
	RateBurst    int      `mapstructure:"rate_burst"`
	RatePerSec   float64  `mapstructure:"rate_per_sec"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	// Peers allowed to set X-Forwarded-For / X-Real-IP, as addresses or
	// CIDR prefixes. Empty means forwarded headers are ignored.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type AuditConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "accountd")
	v.SetDefault("auth.access_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.default_role", "ROLE_USER")

	v.SetDefault("http.max_body_bytes", 1<<20)
	v.SetDefault("http.rate_burst", 20)
	v.SetDefault("http.rate_per_sec", 5)
	v.SetDefault("http.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("audit.timeout", 3*time.Second)
}

// Load reads defaults, then the optional YAML file at path, then
// ACCOUNTD_* environment variables (auth.secret → ACCOUNTD_AUTH_SECRET).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ACCOUNTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(strings.TrimSpace(c.Auth.Secret)) < MinSecretLength {
		errs = append(errs, fmt.Errorf("auth.secret must be at least %d bytes (ACCOUNTD_AUTH_SECRET)", MinSecretLength))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth token lifetimes must be positive"))
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		errs = append(errs, errors.New("auth.access_ttl must be shorter than auth.refresh_ttl"))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}
	if c.HTTP.RatePerSec <= 0 || c.HTTP.RateBurst <= 0 {
		errs = append(errs, errors.New("http rate limit must be positive"))
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("http.trusted_proxies: %q is not an address or CIDR prefix", proxy))
		}
	}
	return errors.Join(errs...)
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
