package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/claytondukes/dibo-gems/internal/logging"
)

// EnvPrefix namespaces environment overrides: GEMS_LOCKS_DURATION for locks.duration.
const EnvPrefix = "GEMS"

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config is the runtime configuration of the API server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Data    DataConfig    `mapstructure:"data"`
	Storage StorageConfig `mapstructure:"storage"`
	Locks   LocksConfig   `mapstructure:"locks"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
}

// LocksConfig controls edit-lock behaviour. Duration applies to every item.
type LocksConfig struct {
	Duration      time.Duration `mapstructure:"duration"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	WriteGrace    time.Duration `mapstructure:"write_grace"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
}

type AuthConfig struct {
	GoogleClientID string        `mapstructure:"google_client_id"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	Admins         []string      `mapstructure:"admins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:5174"},
			ShutdownTimeout: 10 * time.Second,
		},
		Data:    DataConfig{Dir: "./data"},
		Storage: StorageConfig{Driver: DriverFile},
		Locks: LocksConfig{
			Duration:      30 * time.Minute,
			SweepInterval: 5 * time.Minute,
			WriteGrace:    5 * time.Second,
			RatePerMinute: 60,
			Burst:         10,
		},
		Auth: AuthConfig{SessionTTL: 60 * time.Minute},
		Log: LogConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatJSON,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// SetDefaults registers default values with v so every key can also be set from the environment.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("data.dir", d.Data.Dir)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.database_url", d.Storage.DatabaseURL)

	v.SetDefault("locks.duration", d.Locks.Duration)
	v.SetDefault("locks.sweep_interval", d.Locks.SweepInterval)
	v.SetDefault("locks.write_grace", d.Locks.WriteGrace)
	v.SetDefault("locks.rate_per_minute", d.Locks.RatePerMinute)
	v.SetDefault("locks.burst", d.Locks.Burst)

	v.SetDefault("auth.google_client_id", d.Auth.GoogleClientID)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.session_ttl", d.Auth.SessionTTL)
	v.SetDefault("auth.admins", []string{})

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// BindEnv makes v read GEMS_* environment variables for nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError aggregates every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Validate checks for semantic correctness.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Server.Port) == "" {
		problems = append(problems, "server.port is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdown_timeout must be greater than zero")
	}
	switch c.Storage.Driver {
	case DriverFile:
		if strings.TrimSpace(c.Data.Dir) == "" {
			problems = append(problems, "data.dir is required for the file storage driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			problems = append(problems, "storage.database_url is required for the postgres storage driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.driver must be %q or %q", DriverFile, DriverPostgres))
	}
	if c.Locks.Duration <= 0 {
		problems = append(problems, "locks.duration must be greater than zero")
	}
	if c.Locks.SweepInterval < 0 {
		problems = append(problems, "locks.sweep_interval must not be negative")
	}
	if c.Locks.WriteGrace < 0 {
		problems = append(problems, "locks.write_grace must not be negative")
	}
	if c.Locks.WriteGrace >= c.Locks.Duration {
		problems = append(problems, "locks.write_grace must be shorter than locks.duration")
	}
	if c.Locks.RatePerMinute < 0 {
		problems = append(problems, "locks.rate_per_minute must not be negative")
	}
	if c.Locks.RatePerMinute > 0 && c.Locks.Burst <= 0 {
		problems = append(problems, "locks.burst must be greater than zero when rate limiting is enabled")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	if c.Auth.SessionTTL <= 0 {
		problems = append(problems, "auth.session_ttl must be greater than zero")
	}
	if !logging.ValidLevel(c.Log.Level) {
		problems = append(problems, fmt.Sprintf("log.level %q is not one of DEBUG, INFO, WARN, ERROR", c.Log.Level))
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		problems = append(problems, fmt.Sprintf("log.format must be %q or %q", logging.FormatJSON, logging.FormatText))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Server.CORSOrigins = trimList(c.Server.CORSOrigins)
	admins := trimList(c.Auth.Admins)
	for i := range admins {
		admins[i] = strings.ToLower(admins[i])
	}
	c.Auth.Admins = admins
}

// trimList drops blanks and splits any comma-joined entries, which is how
// lists arrive from environment variables.
func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
