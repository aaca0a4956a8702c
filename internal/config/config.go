package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                      string
	DatabaseURL               string
	ShutdownTimeout           time.Duration
	RateLimitPerMinute        int
	RateLimitBurst            int
	CompanyRateLimitPerMinute int
	CompanyRateLimitBurst     int
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                      port,
		DatabaseURL:               os.Getenv("DB_DSN"),
		ShutdownTimeout:           readDurationSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
		RateLimitPerMinute:        readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:            readInt("RATE_LIMIT_BURST", 30),
		CompanyRateLimitPerMinute: readInt("COMPANY_RATE_LIMIT_PER_MIN", 600),
		CompanyRateLimitBurst:     readInt("COMPANY_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
