package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresConn     string
	ServerAddress    string
	UploadDir        string
	MaxUploadBytes   int64
	AdminTokenSecret string
	AdminTokenTTL    time.Duration
	DBConnectTimeout time.Duration
	LogLevel         string
	Environment      string
	AuthRatePerSec   float64
	AuthBurst        int
}

// Load читает конфигурацию из окружения. Файл .env, если он есть,
// подгружается первым и не перекрывает уже заданные переменные.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PostgresConn:     os.Getenv("POSTGRES_CONN"),
		ServerAddress:    getEnvWithDefault("SERVER_ADDRESS", "0.0.0.0:8080"),
		UploadDir:        getEnvWithDefault("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes:   10 * 1024 * 1024,
		AdminTokenSecret: os.Getenv("ADMIN_TOKEN_SECRET"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:      getEnvWithDefault("ENVIRONMENT", "development"),
	}

	var err error
	if cfg.AdminTokenTTL, err = durationEnv("ADMIN_TOKEN_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DBConnectTimeout, err = durationEnv("DB_CONNECT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.AuthRatePerSec, err = floatEnv("AUTH_RATE_PER_SEC", 5); err != nil {
		return nil, err
	}
	if cfg.AuthBurst, err = intEnv("AUTH_BURST", 10); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PostgresConn == "" {
		return fmt.Errorf("POSTGRES_CONN env variable is not set")
	}
	if c.AdminTokenSecret == "" {
		return fmt.Errorf("ADMIN_TOKEN_SECRET env variable is not set")
	}
	if c.AuthBurst <= 0 {
		return fmt.Errorf("AUTH_BURST must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}
