// Package config loads application configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Alerts   AlertsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set (DATABASE_URL), used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32 // 0 leaves the pgxpool default
}

// RedisConfig holds Redis connection settings (alert queue + live feed
// fanout).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds the session token signing secret. There is no default
// and no fallback: a process started without a secret must not come up.
type JWTConfig struct {
	Secret string
}

// AWSConfig holds AWS credentials and the product images bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ImagesBucket         string
	PresignExpireMinutes int
}

// AlertsConfig holds low-stock alert delivery settings. An empty
// WebhookURL disables webhook delivery; alerts are still recorded in the
// activity log.
type AlertsConfig struct {
	WebhookURL     string
	TimeoutSeconds int
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is
// set it is used as-is; otherwise the string is built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
// It fails when JWT_SECRET is absent: silently substituting a guessable
// signing key would let anyone forge session tokens.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &Config{
		Server:   serverConfig(),
		Database: databaseConfig(),
		Redis:    redisConfig(),
		JWT:      JWTConfig{Secret: secret},
		AWS:      awsConfig(),
		Alerts:   alertsConfig(),
	}, nil
}

func serverConfig() ServerConfig {
	return ServerConfig{
		Port:               getEnv("PORT", "8080"),
		ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
		WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}
}

func databaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:      getEnv("DATABASE_URL", ""),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "stocktally"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
	}
}

func redisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func awsConfig() AWSConfig {
	return AWSConfig{
		Region:               getEnv("AWS_REGION", ""),
		AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		ImagesBucket:         getEnv("AWS_S3_IMAGES_BUCKET", ""),
		PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
	}
}

func alertsConfig() AlertsConfig {
	return AlertsConfig{
		WebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),
		TimeoutSeconds: getEnvInt("ALERT_WEBHOOK_TIMEOUT_SEC", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
