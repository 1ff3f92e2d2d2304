package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	ServerPort  string
	Environment string
	JWTExpiry   time.Duration

	// CORS
	AllowedOrigins []string

	// Codename generation
	CodenamePool        []string
	CodenameMaxAttempts int

	// Rate limiting (auth routes, only when RedisURL is set)
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitBlockTime   time.Duration
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load builds the configuration from an optional .env file, the process
// environment and finally command-line flags (args excludes the program name).
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("imf-gadgets", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	port := flags.String("port", "", "listen address, overrides SERVER_PORT")
	databaseURL := flags.String("database-url", "", "database DSN, overrides DATABASE_URL")
	redisURL := flags.String("redis-url", "", "redis URL, overrides REDIS_URL")
	environment := flags.String("environment", "", "development or production, overrides ENVIRONMENT")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Containers pass plain environment variables, so a missing file is fine
	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No %s file loaded, using environment variables", *envFile)
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", "file:gadgets.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		ServerPort:  getEnv("SERVER_PORT", ":3000"),
		Environment: getEnv("ENVIRONMENT", "development"),
		JWTExpiry:   getEnvAsDuration("JWT_EXPIRY", "1h"),

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		CodenamePool:        getEnvAsList("CODENAME_POOL", nil),
		CodenameMaxAttempts: getEnvAsInt("CODENAME_MAX_ATTEMPTS", 100),

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 20),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitBlockTime:   getEnvAsDuration("RATE_LIMIT_BLOCK_TIME", "5m"),
	}

	if *port != "" {
		cfg.ServerPort = *port
	}
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}
	if *redisURL != "" {
		cfg.RedisURL = *redisURL
	}
	if *environment != "" {
		cfg.Environment = *environment
	}

	if !strings.Contains(cfg.ServerPort, ":") {
		cfg.ServerPort = ":" + cfg.ServerPort
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

// getEnvAsList splits a comma separated variable, dropping blank items
func getEnvAsList(key string, defaultVal []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	var items []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultVal
	}
	return items
}
