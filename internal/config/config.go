package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"afl-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	DBPath       string
	ServerPort   string
	LogLevel     string
	StoreBackend string
	CORSOrigins  []string

	FirestoreProject      string
	FirestoreDatabase     string
	FirestoreToken        string
	FirestoreBaseURL      string
	FirestorePollInterval time.Duration
	// FirestoreLocation is the zone of the string timestamps in action
	// documents. The app wrote them in the device's local time.
	FirestoreLocation *time.Location

	SessionIdleTTL time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	pollInterval, err := getDuration("FIRESTORE_POLL_INTERVAL", constants.FirestorePollInterval)
	if err != nil {
		return nil, err
	}
	idleTTL, err := getDuration("SESSION_IDLE_TTL", constants.SessionIdleTTL)
	if err != nil {
		return nil, err
	}
	location, err := time.LoadLocation(getEnv("FIRESTORE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid FIRESTORE_TIMEZONE: %w", err)
	}

	cfg := &Config{
		DBPath:                getEnv("DB_PATH", "afl.db"),
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		CORSOrigins:           splitList(getEnv("CORS_ORIGINS", "*")),
		FirestoreProject:      getEnv("FIRESTORE_PROJECT", ""),
		FirestoreDatabase:     getEnv("FIRESTORE_DATABASE", "(default)"),
		FirestoreToken:        getEnv("FIRESTORE_TOKEN", ""),
		FirestoreBaseURL:      getEnv("FIRESTORE_BASE_URL", "https://firestore.googleapis.com"),
		FirestorePollInterval: pollInterval,
		FirestoreLocation:     location,
		SessionIdleTTL:        idleTTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("store_backend", cfg.StoreBackend).
		Str("firestore_timezone", cfg.FirestoreLocation.String()).
		Dur("session_idle_ttl", cfg.SessionIdleTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite:
	case BackendFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT is required when STORE_BACKEND=firestore")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.FirestorePollInterval <= 0 {
		return fmt.Errorf("FIRESTORE_POLL_INTERVAL must be positive")
	}
	if c.FirestoreLocation == nil {
		return fmt.Errorf("FIRESTORE_TIMEZONE is required")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load)
