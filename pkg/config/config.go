package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Operation names used for rate limiting and credit metering
const (
	OperationResinRecommendation       = "recommend-resin"
	OperationCementationRecommendation = "recommend-cementation"
)

// Config holds all application configuration
type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OpenAI    OpenAIConfig
	OTEL      OTELConfig
	RateLimit RateLimitConfig
	Credits   CreditsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RateLimitRPM   int
	RateLimitBurst int
	TimeoutSeconds int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// OperationLimit holds the per-window ceilings for one operation
type OperationLimit struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Backend is "postgres" or "redis"
	Backend    string
	Operations map[string]OperationLimit
}

// CreditsConfig holds the credit cost of each metered operation
type CreditsConfig struct {
	Costs map[string]int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),

			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "dental_protocols"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o"),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			TimeoutSeconds: getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 120),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "dental-protocols"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		RateLimit: RateLimitConfig{
			Backend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "postgres")),
			Operations: map[string]OperationLimit{
				OperationResinRecommendation:       loadOperationLimit(OperationResinRecommendation, OperationLimit{PerMinute: 10, PerHour: 100, PerDay: 500}),
				OperationCementationRecommendation: loadOperationLimit(OperationCementationRecommendation, OperationLimit{PerMinute: 10, PerHour: 100, PerDay: 500}),
			},
		},
		Credits: CreditsConfig{
			Costs: map[string]int{
				OperationResinRecommendation:       getEnvAsInt("CREDIT_COST_RESIN", 1),
				OperationCementationRecommendation: getEnvAsInt("CREDIT_COST_CEMENTATION", 1),
			},
		},
	}

	if cfg.RateLimit.Backend != "postgres" && cfg.RateLimit.Backend != "redis" {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BACKEND %q: must be postgres or redis", cfg.RateLimit.Backend)
	}

	return cfg, nil
}

// LimitFor returns the configured ceilings of an operation, falling back to
// conservative defaults for unknown operations.
func (c *RateLimitConfig) LimitFor(operation string) OperationLimit {
	if limit, ok := c.Operations[operation]; ok {
		return limit
	}
	return OperationLimit{PerMinute: 5, PerHour: 50, PerDay: 200}
}

// CostOf returns the credit cost of an operation (1 when not configured).
func (c *CreditsConfig) CostOf(operation string) int {
	if cost, ok := c.Costs[operation]; ok && cost > 0 {
		return cost
	}
	return 1
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadOperationLimit reads RATE_LIMIT_<OPERATION>_PER_{MINUTE,HOUR,DAY}
func loadOperationLimit(operation string, defaults OperationLimit) OperationLimit {
	prefix := "RATE_LIMIT_" + strings.ToUpper(strings.ReplaceAll(operation, "-", "_"))
	return OperationLimit{
		PerMinute: getEnvAsInt(prefix+"_PER_MINUTE", defaults.PerMinute),
		PerHour:   getEnvAsInt(prefix+"_PER_HOUR", defaults.PerHour),
		PerDay:    getEnvAsInt(prefix+"_PER_DAY", defaults.PerDay),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(key), ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}
