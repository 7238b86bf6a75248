package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	// Lockout policy: LockoutThreshold consecutive failures inside
	// LockoutWindow lock the identifier for the remainder of the window.
	LockoutThreshold int
	LockoutWindow    time.Duration

	// RotateRefreshTokens switches refresh rotation on. It is an explicit
	// toggle because rotation changes the client-side token-storage
	// contract; clients must persist the new refresh token on every call.
	RotateRefreshTokens bool

	// RequireEmailVerification gates login on a verified email address.
	RequireEmailVerification bool
}

type EmailConfig struct {
	Enabled             bool
	AWSRegion           string
	FromAddress         string
	VerificationURLBase string
	TokenExpiry         time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "touchline"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:                jwtSecret,
			AccessTokenExpiry:        getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:       getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			LockoutThreshold:         getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutWindow:            getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			RotateRefreshTokens:      getEnvAsBool("ROTATE_REFRESH_TOKENS", false),
			RequireEmailVerification: getEnvAsBool("REQUIRE_EMAIL_VERIFICATION", false),
		},
		Email: EmailConfig{
			Enabled:             getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:           getEnv("AWS_REGION", "eu-west-1"),
			FromAddress:         getEnv("EMAIL_FROM_ADDRESS", "no-reply@touchline.app"),
			VerificationURLBase: getEnv("EMAIL_VERIFICATION_URL_BASE", "http://localhost:8080"),
			TokenExpiry:         getEnvAsDuration("EMAIL_TOKEN_EXPIRY", 24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Auth.LockoutThreshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}
	if cfg.Auth.LockoutWindow <= 0 {
		return nil, fmt.Errorf("LOCKOUT_WINDOW must be positive")
	}
	if cfg.Auth.AccessTokenExpiry <= 0 || cfg.Auth.RefreshTokenExpiry <= 0 {
		return nil, fmt.Errorf("token expiries must be positive")
	}
	if cfg.Auth.AccessTokenExpiry >= cfg.Auth.RefreshTokenExpiry {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRY must be shorter than REFRESH_TOKEN_EXPIRY")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the signing key
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
