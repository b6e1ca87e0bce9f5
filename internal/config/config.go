package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	DatabaseURL    string
	LogLevel       string
	JWTSecret      string   // JWT_SECRET: signs and verifies API bearer tokens
	AllowedOrigins []string // ALLOWED_ORIGINS: comma-separated CORS origins
	Redis          RedisConfig
	MetricsEnabled bool
	MigrationsDir  string // MIGRATIONS_DIR: empty uses the migrations embedded in the binary
}

// RedisConfig selects the amendment session store. An empty URL keeps sessions in memory.
type RedisConfig struct {
	URL        string
	SessionTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SESSION_TTL", "30m")
	viper.SetDefault("METRICS_ENABLED", "true")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	ttl, err := time.ParseDuration(getEnvOrViper("SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	metricsEnabled, err := strconv.ParseBool(getEnvOrViper("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}

	cfg := &Config{
		Port:           getEnvOrViper("SERVER_PORT", "8080"),
		Environment:    getEnvOrViper("ENVIRONMENT", "development"),
		DatabaseURL:    strings.TrimSpace(getEnvOrViper("DATABASE_URL", "")),
		LogLevel:       getEnvOrViper("LOG_LEVEL", "info"),
		JWTSecret:      strings.TrimSpace(getEnvOrViper("JWT_SECRET", "")),
		AllowedOrigins: splitList(getEnvOrViper("ALLOWED_ORIGINS", "")),
		Redis: RedisConfig{
			URL:        strings.TrimSpace(getEnvOrViper("REDIS_URL", "")),
			SessionTTL: ttl,
		},
		MetricsEnabled: metricsEnabled,
		MigrationsDir:  strings.TrimSpace(getEnvOrViper("MIGRATIONS_DIR", "")),
	}
	return cfg, nil
}

// ValidateServer checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Redis.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
