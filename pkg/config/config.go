package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// Config holds all configuration for the engine. Configuration can come from
// YAML file (config.yaml) or environment variables. Environment variables
// always override YAML values for fields that support both. Secrets
// (passwords, signing keys) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // set at load time, not from config

	Auth   AuthConfig   `yaml:"auth"`
	Ledger LedgerConfig `yaml:"ledger"`
	Engine EngineConfig `yaml:"engine"`
	Seed   SeedConfig   `yaml:"seed"`
}

// AuthConfig holds admin capability and token verification settings.
type AuthConfig struct {
	// AdminToken is the initial administrator capability. Secret.
	AdminToken string `yaml:"-" env:"ADMIN_TOKEN"`

	// TokenSecret is the HS256 signing secret for locally issued admin
	// tokens. Secret.
	TokenSecret string `yaml:"-" env:"ADMIN_TOKEN_SECRET"`

	// EnableVerification controls whether admin JWT signatures are checked.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// LedgerConfig selects and configures the durability backend.
type LedgerConfig struct {
	// Backend is "memory" or "postgres".
	Backend        string         `yaml:"backend" env:"LEDGER_BACKEND" env-default:"memory"`
	MigrationsPath string         `yaml:"migrations_path" env:"LEDGER_MIGRATIONS_PATH" env-default:"migrations"`
	Database       DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres ledger backend.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"veilshare"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"veilshare_ledger"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// EngineConfig holds the engine's behavioral defaults.
type EngineConfig struct {
	// DefaultRequestTTLHours is how long a created request stays
	// fulfillable. 720h = 30 days.
	DefaultRequestTTLHours int `yaml:"default_request_ttl_hours" env:"DEFAULT_REQUEST_TTL_HOURS" env-default:"720"`

	// DefaultPermissionTTLHours is the default lifetime of a special
	// permission grant when the caller does not specify one.
	DefaultPermissionTTLHours int `yaml:"default_permission_ttl_hours" env:"DEFAULT_PERMISSION_TTL_HOURS" env-default:"24"`

	// DefaultSensitivity is the classifier fallback tier for data types
	// without an override. The most restrictive tier is the safe default.
	DefaultSensitivity string `yaml:"default_sensitivity" env:"DEFAULT_SENSITIVITY" env-default:"critical"`

	// SensitivityOverridesStr maps data types to sensitivity names.
	// Format: "temperature=restricted,heart_rate=confidential"
	SensitivityOverridesStr string `yaml:"sensitivity_overrides" env:"SENSITIVITY_OVERRIDES" env-default:""`

	// GatewayThreshold is the admission confidence threshold for ingestion.
	GatewayThreshold float64 `yaml:"gateway_threshold" env:"GATEWAY_THRESHOLD" env-default:"0.75"`
}

// SeedConfig controls startup seeding.
type SeedConfig struct {
	Enabled bool   `yaml:"enabled" env:"SEED_ENABLED" env-default:"false"`
	Path    string `yaml:"path" env:"SEED_PATH" env-default:"seed.yaml"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Auth.JWKSEndpoints = parsePairs(c.Auth.JWKSEndpointsStr)

	if _, err := models.ParseSensitivityLevel(c.Engine.DefaultSensitivity); err != nil {
		return err
	}
	if _, err := c.Engine.SensitivityOverrides(); err != nil {
		return err
	}
	switch c.Ledger.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown ledger backend: %q", c.Ledger.Backend)
	}
	return nil
}

// DefaultRequestTTL returns the request lifetime as a duration.
func (c *EngineConfig) DefaultRequestTTL() time.Duration {
	return time.Duration(c.DefaultRequestTTLHours) * time.Hour
}

// DefaultPermissionTTL returns the grant lifetime as a duration.
func (c *EngineConfig) DefaultPermissionTTL() time.Duration {
	return time.Duration(c.DefaultPermissionTTLHours) * time.Hour
}

// DefaultSensitivityLevel returns the parsed classifier fallback tier.
func (c *EngineConfig) DefaultSensitivityLevel() models.SensitivityLevel {
	level, err := models.ParseSensitivityLevel(c.DefaultSensitivity)
	if err != nil {
		return models.SensitivityCritical
	}
	return level
}

// SensitivityOverrides parses the per-type overrides map.
func (c *EngineConfig) SensitivityOverrides() (map[string]models.SensitivityLevel, error) {
	overrides := make(map[string]models.SensitivityLevel)
	for dataType, name := range parsePairs(c.SensitivityOverridesStr) {
		level, err := models.ParseSensitivityLevel(name)
		if err != nil {
			return nil, fmt.Errorf("invalid sensitivity override for %q: %w", dataType, err)
		}
		overrides[dataType] = level
	}
	return overrides, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// parsePairs parses a "key1=value1,key2=value2" string into a map.
func parsePairs(value string) map[string]string {
	pairs := make(map[string]string)
	if value == "" {
		return pairs
	}

	for _, pair := range strings.Split(value, ",") {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			pairs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return pairs
}
