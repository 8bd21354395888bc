package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds everything the server needs to start.
// It is read from a JSON file and then patched with environment variables.
type Config struct {
	HTTPServerPort uint16   `json:"http-server-port"`
	DBDriver       string   `json:"db-driver"`
	DBDSN          string   `json:"db-dsn"`
	EnableLogging  bool     `json:"enable-logging"`
	LogLevel       string   `json:"log-level"`
	ReadTimeout    int64    `json:"read-timeout"`  // Seconds
	WriteTimeout   int64    `json:"write-timeout"` // Seconds
	SecretKey      string   `json:"secret-key"`    // Signs session cookies and API tokens
	TokenTTLHours  int64    `json:"token-ttl-hours"`
	AllowedOrigins []string `json:"allowed-origins"` // Websocket origins, empty means any
}

// Default returns the configuration used for any key the file leaves out.
func Default() *Config {
	return &Config{
		HTTPServerPort: 5000,
		DBDriver:       DriverSQLite,
		DBDSN:          "whatschat.db",
		EnableLogging:  true,
		LogLevel:       "info",
		ReadTimeout:    15,
		WriteTimeout:   15,
		TokenTTLHours:  7 * 24,
	}
}

// LoadConfig reads folderPath/.cfg (if present), then applies the environment
// (a .env file in the working directory is loaded first, when there is one).
func LoadConfig(folderPath string) (*Config, error) {
	config := Default()

	file, err := os.Open(filepath.Join(folderPath, ".cfg"))
	switch {
	case err == nil:
		defer file.Close()
		payload, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(payload, config); err != nil {
			return nil, fmt.Errorf("parsing .cfg: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults + environment only
	default:
		return nil, err
	}

	_ = godotenv.Load()
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.HTTPServerPort = uint16(p)
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("ENABLE_LOGGING"); v != "" {
		c.EnableLogging = v == "true" || v == "1"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TOKEN_TTL_HOURS"); v != "" {
		if h, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.TokenTTLHours = h
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
}

// Validate checks the values that would make the server misbehave at runtime.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("secret-key must be set (SECRET_KEY)")
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unknown db-driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db-dsn must be set (DB_DSN)")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("read-timeout and write-timeout must be positive")
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("token-ttl-hours must be positive")
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}
