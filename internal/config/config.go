package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters and is read-only
// after Load returns.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB     DatabaseConfig
	Redis  RedisConfig
	Iyzico IyzicoConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// IyzicoConfig contains the resolved gateway credentials and endpoint.
// Resolution order: explicit mode-suffixed variable, then the unsuffixed
// fallback. BaseURL defaults to the sandbox or production endpoint depending
// on TestMode unless overridden.
type IyzicoConfig struct {
	APIKey          string
	SecretKey       string
	BaseURL         string
	TestMode        bool
	CallbackURL     string
	SkipCallbackURL bool
	Timeout         time.Duration
}

// WorkerConfig contains interval configuration for the session status sweeper.
type WorkerConfig struct {
	StatusSweepInterval   time.Duration
	StatusSweepStaleAfter time.Duration
	StatusSweepMaxAge     time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Iyzico gateway
	var err error
	if cfg.Iyzico, err = ResolveIyzico(cfg.Env); err != nil {
		return nil, err
	}

	// Workers (durations)
	if cfg.Worker.StatusSweepInterval, err = parseDurationEnv("STATUS_SWEEP_INTERVAL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid STATUS_SWEEP_INTERVAL: %w", err)
	}
	if cfg.Worker.StatusSweepStaleAfter, err = parseDurationEnv("STATUS_SWEEP_STALE_AFTER", "2m"); err != nil {
		return nil, fmt.Errorf("invalid STATUS_SWEEP_STALE_AFTER: %w", err)
	}
	if cfg.Worker.StatusSweepMaxAge, err = parseDurationEnv("STATUS_SWEEP_MAX_AGE", "24h"); err != nil {
		return nil, fmt.Errorf("invalid STATUS_SWEEP_MAX_AGE: %w", err)
	}

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for admin authentication")
	}

	return cfg, nil
}

// Gateway base URLs per mode.
const (
	iyzicoSandboxBaseURL    = "https://sandbox-api.iyzipay.com"
	iyzicoProductionBaseURL = "https://api.iyzipay.com"
)

// ResolveIyzico resolves gateway credentials and endpoint from mode flags.
// Pure resolution, no I/O beyond the environment. A missing key pair after
// the fallback chain aborts construction: the payment core cannot start
// without usable credentials.
func ResolveIyzico(env string) (IyzicoConfig, error) {
	testMode := getEnvBool("IYZICO_TEST_MODE", env != "production")

	apiKey := getEnv("IYZICO_API_KEY", "")
	secretKey := getEnv("IYZICO_SECRET_KEY", "")
	if testMode {
		// Mode-suffixed credentials win in test mode; fall through to the
		// unsuffixed pair when absent.
		apiKey = getEnv("IYZICO_API_KEY_TEST", apiKey)
		secretKey = getEnv("IYZICO_SECRET_KEY_TEST", secretKey)
	}

	if apiKey == "" || secretKey == "" {
		return IyzicoConfig{}, errors.New("iyzico configuration incomplete: ensure IYZICO_API_KEY and IYZICO_SECRET_KEY are set")
	}

	baseURL := os.Getenv("IYZICO_BASE_URL")
	if baseURL == "" {
		if testMode {
			baseURL = iyzicoSandboxBaseURL
		} else {
			baseURL = iyzicoProductionBaseURL
		}
	}

	timeout, err := parseDurationEnv("IYZICO_TIMEOUT", "30s")
	if err != nil {
		return IyzicoConfig{}, fmt.Errorf("invalid IYZICO_TIMEOUT: %w", err)
	}

	return IyzicoConfig{
		APIKey:          apiKey,
		SecretKey:       secretKey,
		BaseURL:         baseURL,
		TestMode:        testMode,
		CallbackURL:     getEnv("IYZICO_CALLBACK_URL", ""),
		SkipCallbackURL: getEnvBool("IYZICO_SKIP_CALLBACK_URL", false),
		Timeout:         timeout,
	}, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvBool returns the value of an environment variable as a boolean or a default if empty/invalid.
func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
