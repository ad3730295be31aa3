// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// CatalogAPI holds the settings for the external catalog REST API.
	CatalogAPI CatalogAPIConfig

	// Database holds MariaDB connection settings for the audit log.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Session holds panel session settings.
	Session SessionConfig

	// Upload holds image upload settings.
	Upload UploadConfig
}

// CatalogAPIConfig points the panel at the REST API that owns players and
// enemies. The panel never persists catalog data itself.
type CatalogAPIConfig struct {
	// BaseURL is the API origin, e.g. "http://localhost:8000". Paths such as
	// /api/players/ are appended to it.
	BaseURL string

	// Timeout bounds every API call. Zero disables the timeout.
	Timeout time.Duration
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Enabled turns the audit log on. When false no MariaDB connection is made.
	Enabled bool

	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "catalog").
	User string

	// Password is the MariaDB password (default: "catalog").
	Password string

	// Name is the database name (default: "catalog_panel").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration

	// MigrationsPath is the directory holding the *.up.sql / *.down.sql files.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// SessionConfig holds settings for the per-browser panel session that
// carries form visibility and the edit-session flag.
type SessionConfig struct {
	// TTL is how long idle panel state survives in Redis.
	TTL time.Duration
}

// UploadConfig holds image upload settings.
type UploadConfig struct {
	// MaxSize is the maximum upload file size in bytes.
	MaxSize int64

	// MaxDimension downsizes images whose width or height exceeds it before
	// encoding. Zero keeps images untouched.
	MaxDimension int
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		CatalogAPI: CatalogAPIConfig{
			BaseURL: strings.TrimRight(getEnv("CATALOG_API_URL", ""), "/"),
			Timeout: getEnvDuration("CATALOG_API_TIMEOUT", 15*time.Second),
		},

		Database: DatabaseConfig{
			Enabled:         getEnvBool("AUDIT_ENABLED", true),
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "catalog"),
			Password:        getEnv("DB_PASSWORD", "catalog"),
			Name:            getEnv("DB_NAME", "catalog_panel"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Session: SessionConfig{
			TTL: getEnvDuration("SESSION_TTL", 12*time.Hour),
		},

		Upload: UploadConfig{
			MaxSize:      getEnvInt64("UPLOAD_MAX_SIZE", 5*1024*1024), // 5MB
			MaxDimension: getEnvInt("IMAGE_MAX_DIMENSION", 0),
		},
	}

	// The catalog API has no sensible production default. Case-insensitive
	// check catches common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.CatalogAPI.BaseURL == "" {
			return nil, fmt.Errorf("CATALOG_API_URL is required in production")
		}
	}

	// Local dev talks to the FastAPI default port.
	if cfg.CatalogAPI.BaseURL == "" {
		cfg.CatalogAPI.BaseURL = "http://localhost:8000"
	}

	if cfg.Upload.MaxSize <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvInt64 reads an int64 env var or returns the default.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var ("true", "1", "false", ...) or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
