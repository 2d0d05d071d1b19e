package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}

	WeatherAPI struct {
		APIKey     string
		BaseURL    string
		ZipCountry string
	}

	GeoIP struct {
		URL string
	}

	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Cache struct {
		Duration time.Duration
		MaxSize  int
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	CircuitBreaker struct {
		Timeout time.Duration
	}

	Retention struct {
		MaxAge   time.Duration
		CronSpec string
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("WRITE_TIMEOUT", "10s"))

	cfg.WeatherAPI.APIKey = getEnv("OPENWEATHER_API_KEY", "")
	cfg.WeatherAPI.BaseURL = getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")
	cfg.WeatherAPI.ZipCountry = getEnv("ZIP_COUNTRY", "IN")

	cfg.GeoIP.URL = getEnv("GEOIP_URL", "http://ip-api.com/json/")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "3306")
	cfg.Database.User = getEnv("DB_USER", "root")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "weatherdb")

	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "10m"))
	cfg.Cache.MaxSize = parseInt(getEnv("MAX_CACHE_SIZE", "1000"))

	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "3"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	cfg.Retention.MaxAge = parseDuration(getEnv("HISTORY_MAX_AGE", "2160h")) // 90 days
	cfg.Retention.CronSpec = getEnv("HISTORY_PRUNE_CRON", "0 3 * * *")

	return cfg, nil
}

// DSN builds the MySQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
