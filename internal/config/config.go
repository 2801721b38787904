package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Hunt     HuntConfig
	Widget   WidgetConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port            string
	PublicBaseURL   string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
	LogLevel  string
}

// HuntConfig holds hunt lifecycle policies
type HuntConfig struct {
	AllowSlotsWhileOpening bool
}

// WidgetConfig holds overlay fan-out settings
type WidgetConfig struct {
	DeliveryTimeout time.Duration
	ResyncInterval  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	allowSlots, err := getEnvBool("ALLOW_SLOTS_WHILE_OPENING", false)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	deliveryTimeout, err := getEnvDuration("BROADCAST_DELIVERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	resyncInterval, err := getEnvDuration("WIDGET_RESYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	port := getEnv("SERVER_PORT", "8080")

	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "bonus_hunt"),
			SQLitePath: getEnv("SQLITE_PATH", "bonus_hunt.db"),
		},
		Server: ServerConfig{
			Port:            port,
			PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
			AllowedOrigins:  getEnvList("WIDGET_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: shutdownTimeout,
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
		},
		Hunt: HuntConfig{
			AllowSlotsWhileOpening: allowSlots,
		},
		Widget: WidgetConfig{
			DeliveryTimeout: deliveryTimeout,
			ResyncInterval:  resyncInterval,
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", config.Database.Driver)
	}

	return config, nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", key, d)
	}
	return d, nil
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
