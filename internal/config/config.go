package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	HoldBackendDatabase = "database"
	HoldBackendRedis    = "redis"
)

type Config struct {
	Port          string
	AppEnv        string
	AllowedOrigin string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	HoldBackend   string

	DashboardCacheTTL time.Duration

	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string

	ShopName     string
	ReceiptWidth int

	Logger LoggerConfig
}

type LoggerConfig struct {
	Level    string
	Encoding string
	Env      string
}

// Load reads the environment, after merging an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	appEnv := getEnv("APP_ENV", "development")
	holdBackend := strings.ToLower(getEnv("HOLD_BACKEND", HoldBackendDatabase))
	if holdBackend != HoldBackendRedis {
		holdBackend = HoldBackendDatabase
	}

	encoding := "json"
	if appEnv == "development" {
		encoding = "console"
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		AppEnv:        appEnv,
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),

		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 30),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 8),
		DBConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		HoldBackend:   holdBackend,

		DashboardCacheTTL: time.Duration(getEnvInt("DASHBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,

		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),

		ShopName:     getEnv("SHOP_NAME", "HH Mart"),
		ReceiptWidth: getEnvInt("RECEIPT_WIDTH", 42),

		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", encoding),
			Env:      appEnv,
		},
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

// getEnvInt falls back on unset, malformed and non-positive values, except
// that an explicit 0 is kept for keys whose fallback is 0.
func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 0 || (val == 0 && fallback > 0) {
		return fallback
	}
	return val
}
