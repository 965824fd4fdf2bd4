package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server config
	Server ServerConfig

	// database config
	Database DatabaseConfig

	// CSRF / cookie config
	Security SecurityConfig

	// OpenRouter API config
	OpenRouter OpenRouterConfig

	// feature flags and limits
	Limits LimitsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string
	Environment  string // development, staging, production
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	CSRFKey       string
	SecureCookies bool // true in production
}

// OpenRouterConfig holds external model API configuration.
type OpenRouterConfig struct {
	APIKey      string
	VisionModel string
	TextModel   string
	SiteURL     string // optional HTTP-Referer attribution header
	SiteName    string // optional X-Title attribution header
}

// LimitsConfig holds upload limits and quota settings.
type LimitsConfig struct {
	MaxUploadBytes    int64
	DefaultUserQuota  int
	DashboardPageSize int
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	// This is useful for local development but not required in production
	// where env vars are typically set by the orchestration platform
	_ = godotenv.Load()

	cfg := &Config{}

	// Load server configuration
	cfg.Server = ServerConfig{
		Address:      getEnvOrDefault("SERVER_ADDRESS", ":8080"),
		Environment:  getEnvOrDefault("APP_ENV", "development"),
		ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:  getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
	}

	// Load database configuration
	cfg.Database = DatabaseConfig{
		Host:     getEnvOrDefault("PSQL_HOST", "localhost"),
		Port:     getEnvOrDefault("PSQL_PORT", "5432"),
		User:     getEnvOrDefault("PSQL_USER", "postgres"),
		Password: os.Getenv("PSQL_PASSWORD"),
		Name:     getEnvOrDefault("PSQL_DATABASE", "fitcheck"),
		SSLMode:  getEnvOrDefault("PSQL_SSLMODE", "disable"),
	}

	// Load security configuration
	cfg.Security = SecurityConfig{
		CSRFKey:       os.Getenv("CSRF_KEY"),
		SecureCookies: cfg.Server.Environment == "production",
	}

	// Load OpenRouter configuration
	cfg.OpenRouter = OpenRouterConfig{
		APIKey:      os.Getenv("OPENROUTER_API_KEY"),
		VisionModel: getEnvOrDefault("OPENROUTER_VISION_MODEL", "allenai/molmo-2-8b:free"),
		TextModel:   getEnvOrDefault("OPENROUTER_TEXT_MODEL", "allenai/molmo-2-8b:free"),
		SiteURL:     os.Getenv("OPENROUTER_SITE_URL"),
		SiteName:    getEnvOrDefault("OPENROUTER_SITE_NAME", "Outfit Fitcheck"),
	}

	// Load limits configuration
	maxUploadMB, err := strconv.Atoi(getEnvOrDefault("MAX_UPLOAD_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	defaultQuota, err := strconv.Atoi(getEnvOrDefault("DEFAULT_USER_QUOTA", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_USER_QUOTA: %w", err)
	}

	pageSize, err := strconv.Atoi(getEnvOrDefault("DASHBOARD_PAGE_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_PAGE_SIZE: %w", err)
	}

	cfg.Limits = LimitsConfig{
		MaxUploadBytes:    int64(maxUploadMB) << 20,
		DefaultUserQuota:  defaultQuota,
		DashboardPageSize: pageSize,
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present and valid.
// This implements the "fail fast" principle - better to fail at startup
// than to fail later when a missing config is accessed.
func (c *Config) validate() error {
	var errs []error

	// OpenRouter API key is required; without it every fitcheck would fail
	if c.OpenRouter.APIKey == "" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY is required"))
	}

	// CSRF key must be set and sufficiently long
	if c.Security.CSRFKey == "" {
		errs = append(errs, errors.New("CSRF_KEY is required"))
	} else if len(c.Security.CSRFKey) < 32 {
		errs = append(errs, errors.New("CSRF_KEY must be at least 32 characters"))
	}

	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("PSQL_HOST and PSQL_DATABASE are required"))
	}

	if c.Limits.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}

	// Validate environment is a known value
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Server.Environment] {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: development, staging, production (got: %s)", c.Server.Environment))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return duration
	}
	return defaultValue
}

// MustLoad is like Load but panics on error.
// Used in main() where its required to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
