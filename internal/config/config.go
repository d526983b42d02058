// Package config provides Viper-based configuration loading for the home server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds the host bridge listener settings.
type ServerConfig struct {
	// GRPCHost is the bind address for the HomeService gRPC listener.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the HomeService gRPC listener.
	GRPCPort int `mapstructure:"grpc_port"`
	// ShutdownTimeout bounds how long shutdown waits for each service.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GRPCHost, s.GRPCPort)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// HomesConfig holds the home limit and persistence policy.
type HomesConfig struct {
	// Limit is the base number of homes per player; -1 means unlimited.
	Limit int `mapstructure:"limit"`
	// BanWorld is a comma-separated list of worlds where homes cannot be set.
	BanWorld string `mapstructure:"ban-world"`
	// DataDir is the root directory of the file repository.
	DataDir string `mapstructure:"data_dir"`
	// AutosaveInterval is the period between full checkpoint saves; 0 disables it.
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	// WriteThrough persists a player's homes after every mutation.
	WriteThrough bool `mapstructure:"write_through"`
}

// BannedWorlds splits BanWorld into trimmed, non-empty world identifiers.
func (h HomesConfig) BannedWorlds() []string {
	var out []string
	for _, w := range strings.Split(h.BanWorld, ",") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// MessagesConfig holds the user-facing message templates.
//
// Templates accept named placeholders ("{home}") and the legacy positional
// "%1"/"%2" forms.
type MessagesConfig struct {
	Prefix          string `mapstructure:"prefix"`
	NoHome          string `mapstructure:"no-home"`
	HomeList        string `mapstructure:"home-list"`
	SetHomeMax      string `mapstructure:"sethome-max"`
	BanWorld        string `mapstructure:"ban-world-message"`
	SetHomeOK       string `mapstructure:"sethome-ok"`
	DelHomeOK       string `mapstructure:"delhome-ok"`
	HomeTeleport    string `mapstructure:"home-teleport"`
	HomeNotFound    string `mapstructure:"home-not-found"`
	SetHomeUsage    string `mapstructure:"sethome-usage"`
	DelHomeUsage    string `mapstructure:"delhome-usage"`
	TierUnavailable string `mapstructure:"tier-unavailable"`
	InvalidHome     string `mapstructure:"invalid-home"`
	InternalError   string `mapstructure:"internal-error"`
}

// StorageConfig selects the home repository backend.
type StorageConfig struct {
	// Driver is "file" (per-player YAML), "bolt", "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
	// BoltPath is the database file used by the bolt driver.
	BoltPath string `mapstructure:"bolt_path"`
}

// AdminConfig holds the operator HTTP listener settings (metrics, health,
// read-only home lookups).
type AdminConfig struct {
	// Addr is the "host:port" of the admin listener; empty disables it.
	Addr string `mapstructure:"addr"`
}

// TracingConfig holds the OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318.
	Endpoint string `mapstructure:"endpoint"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `mapstructure:"service_name"`
	// SampleRatio is the fraction of root spans kept, in [0, 1].
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

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

// LevelingConfig holds the external leveling service client settings.
type LevelingConfig struct {
	// BaseURL is the leveling service root; empty disables tier lookups (tier 0).
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds a single tier lookup.
	Timeout time.Duration `mapstructure:"timeout"`
	// Fallback is "zero" (unreachable service counts as tier 0) or "error".
	Fallback string `mapstructure:"fallback"`
}

// ScriptingConfig holds the optional Lua limit override.
type ScriptingConfig struct {
	// LimitScript is a Lua file defining max_homes(tier, base); empty disables it.
	LimitScript string `mapstructure:"limit_script"`
	// InstructionLimit caps opcodes per evaluation; 0 uses the sandbox default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Homes     HomesConfig     `mapstructure:"homes"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Leveling  LevelingConfig  `mapstructure:"leveling"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHomes(c.Homes); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	// The database section only matters when postgres backs the store.
	if c.Storage.Driver == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLeveling(c.Leveling); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}
	if err := validateTracing(c.Tracing); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.GRPCHost == "" {
		errs = append(errs, "server.grpc_host must not be empty")
	}
	if s.GRPCPort < 1 || s.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.grpc_port must be 1-65535, got %d", s.GRPCPort))
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

func validateHomes(h HomesConfig) error {
	var errs []string
	if h.Limit < -1 {
		errs = append(errs, fmt.Sprintf("homes.limit must be >= -1, got %d", h.Limit))
	}
	if h.DataDir == "" {
		errs = append(errs, "homes.data_dir must not be empty")
	}
	if h.AutosaveInterval < 0 {
		errs = append(errs, "homes.autosave_interval must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	validDrivers := map[string]bool{"file": true, "bolt": true, "sqlite": true, "postgres": true}
	if !validDrivers[s.Driver] {
		return fmt.Errorf("storage.driver must be one of [file, bolt, sqlite, postgres], got %q", s.Driver)
	}
	if s.Driver == "sqlite" && strings.TrimSpace(s.SQLitePath) == "" {
		return errors.New("storage.sqlite_path must not be empty when storage.driver is sqlite")
	}
	if s.Driver == "bolt" && strings.TrimSpace(s.BoltPath) == "" {
		return errors.New("storage.bolt_path must not be empty when storage.driver is bolt")
	}
	return nil
}

func validateTracing(t TracingConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if t.Endpoint == "" {
		errs = append(errs, "tracing.endpoint must not be empty when tracing is enabled")
	}
	if t.ServiceName == "" {
		errs = append(errs, "tracing.service_name must not be empty")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_ratio must be within [0, 1], got %g", t.SampleRatio))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
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

func validateLeveling(l LevelingConfig) error {
	var errs []string
	if l.Timeout <= 0 {
		errs = append(errs, "leveling.timeout must be positive")
	}
	validFallbacks := map[string]bool{"zero": true, "error": true}
	if !validFallbacks[l.Fallback] {
		errs = append(errs, fmt.Sprintf("leveling.fallback must be one of [zero, error], got %q", l.Fallback))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
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

	// Environment variable overrides with SIMPLEHOME_ prefix
	v.SetEnvPrefix("SIMPLEHOME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment so
// SIMPLEHOME_* overrides can live in a .env file. Variables already set in the
// environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
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

// SetDefaults registers every default value on v. Exported so tools that
// build their own Viper instance (cmd/migrate) share the same defaults.
func SetDefaults(v *viper.Viper) {
	setDefaults(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_host", "127.0.0.1")
	v.SetDefault("server.grpc_port", 50061)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("homes.limit", 3)
	v.SetDefault("homes.ban-world", "")
	v.SetDefault("homes.data_dir", "data")
	v.SetDefault("homes.autosave_interval", "5m")
	v.SetDefault("homes.write_through", true)

	v.SetDefault("messages.prefix", "§7[§aSimpleHome§7]")
	v.SetDefault("messages.no-home", "§cYou have not set any homes.")
	v.SetDefault("messages.home-list", "§aYour homes (%1): %2")
	v.SetDefault("messages.sethome-max", "§cCannot set home %1: you already have the maximum of %2 homes.")
	v.SetDefault("messages.ban-world-message", "§cYou cannot set a home in this world.")
	v.SetDefault("messages.sethome-ok", "§aHome %1 set.")
	v.SetDefault("messages.delhome-ok", "§aHome %1 removed.")
	v.SetDefault("messages.home-teleport", "§aTeleported to home %1.")
	v.SetDefault("messages.home-not-found", "§cHome %1 does not exist.")
	v.SetDefault("messages.sethome-usage", "§cUsage: /sethome <name>")
	v.SetDefault("messages.delhome-usage", "§cUsage: /delhome <name>")
	v.SetDefault("messages.tier-unavailable", "§cYour level could not be checked, try again later.")
	v.SetDefault("messages.invalid-home", "§cHome %1 cannot be saved here.")
	v.SetDefault("messages.internal-error", "§cSomething went wrong, try again later.")

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.sqlite_path", "data/homes.db")
	v.SetDefault("storage.bolt_path", "data/homes.bolt")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "simplehome")
	v.SetDefault("database.password", "simplehome")
	v.SetDefault("database.name", "simplehome")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("leveling.base_url", "")
	v.SetDefault("leveling.timeout", "2s")
	v.SetDefault("leveling.fallback", "zero")

	v.SetDefault("scripting.limit_script", "")
	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("admin.addr", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "simplehome")
	v.SetDefault("tracing.sample_ratio", 1.0)
}
