package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Recognized values for AppConfig.ServerMode and LockConfig.Backend.
const (
	ServerModeMaster  = "master"
	ServerModeReplica = "replica"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Lock     LockConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ServerMode         string // "master" or "replica"
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type AuthConfig struct {
	JwtSecret   string
	TokenExpiry time.Duration
}

type LockConfig struct {
	Backend       string // "memory" or "redis"
	Timeout       time.Duration
	SweepInterval string // cron spec for the expiry sweep
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			ServerMode:         getEnv("SERVER_MODE", "master"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret:   getEnv("JWT_SECRET", "default_secret"),
			TokenExpiry: getEnvAsDuration("TOKEN_EXPIRY", time.Hour),
		},
		Lock: LockConfig{
			Backend:       getEnv("LOCK_BACKEND", "memory"),
			Timeout:       getEnvAsDuration("LOCK_TIMEOUT", 15*time.Minute),
			SweepInterval: getEnv("LOCK_SWEEP_INTERVAL", "@every 1m"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
