// Package config loads runtime configuration from the environment, with
// a .env file honored in development. Every knob has a default that
// works for local use; validate() rejects the dev placeholders when the
// process claims to run in production.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store      StoreConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Export     ExportConfig
	Reports    ReportsConfig
	AutoPlan   AutoPlanConfig
	Bootstrap  BootstrapConfig
}

// StoreConfig locates the single JSON snapshot the service persists to.
type StoreConfig struct {
	Path string
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig carries engine tunables plus the defaults used to seed
// schedule settings when the store starts empty.
type SchedulingConfig struct {
	AttemptFactor       int
	DefaultTimezone     string
	DefaultWeekStart    string
	DefaultMinRestHours int
}

// ExportConfig tunes the synchronous CSV download endpoint.
type ExportConfig struct {
	CSVDelimiter string
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// AutoPlanConfig controls the cron-driven weekly generation job.
type AutoPlanConfig struct {
	Enabled bool
	Spec    string
}

// BootstrapConfig seeds the initial admin account on an empty store.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// A missing .env is fine; only a present-but-unreadable file is an
	// error. With an explicit config file viper reports absence as a
	// plain fs error, not ConfigFileNotFoundError.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Store:     StoreConfig{Path: v.GetString("STORE_PATH")},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			Expiration:        durationOr(v, "JWT_EXPIRATION", 24*time.Hour),
			RefreshExpiration: durationOr(v, "REFRESH_TOKEN_EXPIRATION", 7*24*time.Hour),
		},
		CORS: CORSConfig{AllowedOrigins: commaList(v.GetString("ALLOWED_ORIGINS"))},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Scheduling: SchedulingConfig{
			AttemptFactor:       v.GetInt("SCHEDULE_ATTEMPT_FACTOR"),
			DefaultTimezone:     v.GetString("SCHEDULE_DEFAULT_TIMEZONE"),
			DefaultWeekStart:    v.GetString("SCHEDULE_DEFAULT_WEEK_START"),
			DefaultMinRestHours: v.GetInt("SCHEDULE_DEFAULT_MIN_REST_HOURS"),
		},
		Export: ExportConfig{CSVDelimiter: v.GetString("EXPORT_CSV_DELIMITER")},
		Reports: ReportsConfig{
			Enabled:           v.GetBool("ENABLE_REPORTS"),
			StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
			SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
			SignedURLTTL:      durationOr(v, "REPORTS_SIGNED_URL_TTL", 24*time.Hour),
			CleanupInterval:   durationOr(v, "REPORTS_CLEANUP_INTERVAL", time.Hour),
			WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
			WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		},
		AutoPlan: AutoPlanConfig{
			Enabled: v.GetBool("AUTOPLAN_ENABLED"),
			Spec:    v.GetString("AUTOPLAN_CRON"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    v.GetString("BOOTSTRAP_ADMIN_EMAIL"),
			AdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate only applies in production: development runs must work with
// nothing but the defaults.
func (c *Config) validate() error {
	if c.Env != EnvProduction {
		return nil
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "dev_secret" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Reports.Enabled && (c.Reports.SignedURLSecret == "" || c.Reports.SignedURLSecret == "dev_reports_secret") {
		return fmt.Errorf("REPORTS_SIGNED_URL_SECRET must be set in production")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_PATH", "./data/rota.json")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULE_ATTEMPT_FACTOR", 2)
	v.SetDefault("SCHEDULE_DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULE_DEFAULT_WEEK_START", "monday")
	v.SetDefault("SCHEDULE_DEFAULT_MIN_REST_HOURS", 10)

	v.SetDefault("EXPORT_CSV_DELIMITER", ",")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("AUTOPLAN_ENABLED", false)
	v.SetDefault("AUTOPLAN_CRON", "0 18 * * FRI")

	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "admin@rota.local")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "admin123")
}

// durationOr parses the duration under key, falling back when the value
// is empty or malformed rather than failing startup.
func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// commaList splits a comma-separated value, dropping empty entries.
func commaList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
