package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBSchema        string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	DBRetryAttempts int           `mapstructure:"DB_RETRY_ATTEMPTS"`
	DBRetryDelay    time.Duration `mapstructure:"DB_RETRY_DELAY"`
	DBQueryTimeout  time.Duration `mapstructure:"DB_QUERY_TIMEOUT"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	CatalogFile     string        `mapstructure:"CATALOG_FILE"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT",
	"ENV",
	"DATABASE_URL",
	"DB_SCHEMA",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_RETRY_ATTEMPTS",
	"DB_RETRY_DELAY",
	"DB_QUERY_TIMEOUT",
	"TIMEZONE",
	"CATALOG_FILE",
	"AUTH_SIGNING_KEY",
	"AUTH_ISSUER",
	"AUTH_AUDIENCE",
	"CORS_ORIGINS",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
}

// Load reads the environment, falling back to a .env file in the working
// directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_RETRY_ATTEMPTS", 3)
	v.SetDefault("DB_RETRY_DELAY", "50ms")
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves TIMEZONE, the zone in which "today" is computed for
// checklist answers.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is required so that every request is authenticated.
func (c *Config) Validate() error {
	if c.Timezone == "" {
		return fmt.Errorf("TIMEZONE must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.DBRetryAttempts < 1 {
		return fmt.Errorf("DB_RETRY_ATTEMPTS must be at least 1, got %d", c.DBRetryAttempts)
	}
	if c.DBRetryDelay < 0 || c.DBQueryTimeout < 0 {
		return fmt.Errorf("DB_RETRY_DELAY and DB_QUERY_TIMEOUT must not be negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	return nil
}
