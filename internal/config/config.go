package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	NATS       NATSConfig
	Metrics    MetricsConfig
	Auth       AuthConfig
	CheckIn    CheckInConfig
	Operations OperationsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// StorageConfig selects the repository implementation.
type StorageConfig struct {
	Driver string // "postgres" or "memory"
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// RedisConfig holds Redis configuration. An empty Addr runs without Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// NATSConfig holds event publishing configuration. An empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// AuthConfig holds session token validation settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// CheckInConfig holds QR check-in settings.
type CheckInConfig struct {
	QRSecret  string
	HandleTTL time.Duration
}

// OperationsConfig holds business settings that vary per deployment.
type OperationsConfig struct {
	Location        *time.Location
	TripStartLead   time.Duration // how early a driver may start a trip
	AverageSpeedKmh float64       // used for live ETA
	AssignLockTTL   time.Duration
}

// Load loads configuration from environment variables, reading a .env file
// first when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "shuttle"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "shuttle-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "shuttle"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		CheckIn: CheckInConfig{
			QRSecret:  os.Getenv("CHECKIN_QR_SECRET"),
			HandleTTL: getDurationEnv("CHECKIN_HANDLE_TTL", 90*time.Second),
		},
		Operations: OperationsConfig{
			TripStartLead:   getDurationEnv("TRIP_START_LEAD", 30*time.Minute),
			AverageSpeedKmh: getFloatEnv("AVERAGE_SPEED_KMH", 40),
			AssignLockTTL:   getDurationEnv("ASSIGN_LOCK_TTL", 5*time.Second),
		},
	}

	loc, err := time.LoadLocation(getEnv("SERVICE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVICE_TIMEZONE: %w", err)
	}
	cfg.Operations.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: want postgres or memory", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must be set")
	}
	if c.CheckIn.QRSecret == "" {
		return fmt.Errorf("CHECKIN_QR_SECRET must be set")
	}
	if c.CheckIn.HandleTTL <= 0 {
		return fmt.Errorf("CHECKIN_HANDLE_TTL must be positive")
	}
	if c.Operations.AverageSpeedKmh <= 0 {
		return fmt.Errorf("AVERAGE_SPEED_KMH must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
