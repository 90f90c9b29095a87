// Package config provides Viper-based configuration loading for the duel server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// GatewayConfig holds HTTP interaction gateway settings.
type GatewayConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-request read timeout.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-response write timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// DuelConfig holds duel engine settings.
type DuelConfig struct {
	// InviteTimeout bounds the wait for the challenged user to answer.
	InviteTimeout time.Duration `mapstructure:"invite_timeout"`
	// TurnTimeout bounds the wait for each turn and item menu selection.
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
	MaxHealth   int           `mapstructure:"max_health"`
	// ItemsPerBattler is the number of items dealt to each battler.
	ItemsPerBattler int `mapstructure:"items_per_battler"`
	// TimeoutPolicy is "log" or "forfeit".
	TimeoutPolicy  string `mapstructure:"timeout_policy"`
	RecentEntries  int    `mapstructure:"recent_entries"`
	SummaryEntries int    `mapstructure:"summary_entries"`
}

// CatalogConfig selects where weapon and item definitions come from.
type CatalogConfig struct {
	// Source is "builtin", "yaml", or "postgres".
	Source     string `mapstructure:"source"`
	WeaponsDir string `mapstructure:"weapons_dir"`
	ItemsDir   string `mapstructure:"items_dir"`
	// ScriptInstructionLimit caps the Lua opcodes one scripted item may run.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// RegistryConfig selects the active-duel registry backend.
type RegistryConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	// SessionTTL is how long registry keys outlive the last turn of their
	// session; it only matters for sessions whose process died.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Duel     DuelConfig     `mapstructure:"duel"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Registry RegistryConfig `mapstructure:"registry"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
}

// Validate checks all configuration invariants. Database settings are checked
// only when the catalog is read from PostgreSQL, and Redis settings only when
// the registry lives in Redis.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDuel(c.Duel); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCatalog(c.Catalog); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRegistry(c.Registry); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Registry.Backend == "redis" {
		if err := validateRedis(c.Redis); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Catalog.Source == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateGateway(c.Gateway); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDuel(d DuelConfig) error {
	var errs []string
	if d.InviteTimeout <= 0 {
		errs = append(errs, "duel.invite_timeout must be positive")
	}
	if d.TurnTimeout <= 0 {
		errs = append(errs, "duel.turn_timeout must be positive")
	}
	if d.MaxHealth < 1 {
		errs = append(errs, fmt.Sprintf("duel.max_health must be >= 1, got %d", d.MaxHealth))
	}
	if d.ItemsPerBattler < 0 {
		errs = append(errs, fmt.Sprintf("duel.items_per_battler must be >= 0, got %d", d.ItemsPerBattler))
	}
	validPolicies := map[string]bool{"log": true, "forfeit": true}
	if !validPolicies[d.TimeoutPolicy] {
		errs = append(errs, fmt.Sprintf("duel.timeout_policy must be one of [log, forfeit], got %q", d.TimeoutPolicy))
	}
	if d.RecentEntries < 1 {
		errs = append(errs, fmt.Sprintf("duel.recent_entries must be >= 1, got %d", d.RecentEntries))
	}
	if d.SummaryEntries < d.RecentEntries {
		errs = append(errs, "duel.summary_entries must not be less than duel.recent_entries")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCatalog(c CatalogConfig) error {
	var errs []string
	switch c.Source {
	case "builtin", "postgres":
	case "yaml":
		if c.WeaponsDir == "" || c.ItemsDir == "" {
			errs = append(errs, "catalog.weapons_dir and catalog.items_dir must be set when catalog.source is yaml")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog.source must be one of [builtin, yaml, postgres], got %q", c.Source))
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("catalog.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRegistry(r RegistryConfig) error {
	validBackends := map[string]bool{"memory": true, "redis": true}
	if !validBackends[r.Backend] {
		return fmt.Errorf("registry.backend must be one of [memory, redis], got %q", r.Backend)
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if r.KeyPrefix == "" {
		errs = append(errs, "redis.key_prefix must not be empty")
	}
	if r.SessionTTL <= 0 {
		errs = append(errs, fmt.Sprintf("redis.session_ttl must be > 0, got %s", r.SessionTTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGateway(g GatewayConfig) error {
	var errs []string
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("gateway.port must be 1-65535, got %d", g.Port))
	}
	if g.ReadTimeout < 0 {
		errs = append(errs, "gateway.read_timeout must not be negative")
	}
	if g.WriteTimeout < 0 {
		errs = append(errs, "gateway.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RPGBOT_ prefix
	v.SetEnvPrefix("RPGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
//
// Postcondition: LoadFromViper(Defaults()) succeeds.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("duel.invite_timeout", "1m")
	v.SetDefault("duel.turn_timeout", "1m")
	v.SetDefault("duel.max_health", 100)
	v.SetDefault("duel.items_per_battler", 3)
	v.SetDefault("duel.timeout_policy", "log")
	v.SetDefault("duel.recent_entries", 3)
	v.SetDefault("duel.summary_entries", 30)

	v.SetDefault("catalog.source", "builtin")
	v.SetDefault("catalog.weapons_dir", "content/weapons")
	v.SetDefault("catalog.items_dir", "content/items")
	v.SetDefault("catalog.script_instruction_limit", 100000)

	v.SetDefault("registry.backend", "memory")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "rpgbot")
	v.SetDefault("redis.session_ttl", "2h")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rpgbot")
	v.SetDefault("database.password", "rpgbot")
	v.SetDefault("database.name", "rpgbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.read_timeout", "10s")
	v.SetDefault("gateway.write_timeout", "10s")
}
