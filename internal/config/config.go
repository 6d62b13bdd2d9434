package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	JWTSecret      string
	DatabaseURL    string
	AllowedOrigins string

	RedisAddr     string
	RedisPassword string

	AMQPURL string

	ExpireInterval time.Duration
	ExpireGrace    time.Duration

	AutoVerifyListeners bool
	RateLimitPerMinute  int

	LogLevel  string
	LogFormat string
}

// Load reads the process environment, after merging an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return def
	}
	cfg := Config{
		Addr:           get("ADDR", ":8080"),
		JWTSecret:      getenv("JWT_SECRET"),
		DatabaseURL:    getenv("DATABASE_URL"),
		AllowedOrigins: get("ALLOWED_ORIGINS", "*"),
		RedisAddr:      getenv("REDIS_ADDR"),
		RedisPassword:  getenv("REDIS_PASSWORD"),
		AMQPURL:        getenv("AMQP_URL"),
		LogLevel:       get("LOG_LEVEL", "info"),
		LogFormat:      get("LOG_FORMAT", "text"),
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"RATE_LIMIT_PER_MINUTE", 100, &cfg.RateLimitPerMinute},
	}
	for _, i := range ints {
		n, err := strconv.Atoi(get(i.key, strconv.Itoa(i.def)))
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive integer", i.key)
		}
		*i.dst = n
	}

	expire, err := seconds(get("EXPIRE_INTERVAL_SECONDS", "30"))
	if err != nil {
		return Config{}, fmt.Errorf("EXPIRE_INTERVAL_SECONDS: %w", err)
	}
	grace, err := seconds(get("EXPIRE_GRACE_SECONDS", "15"))
	if err != nil {
		return Config{}, fmt.Errorf("EXPIRE_GRACE_SECONDS: %w", err)
	}
	cfg.ExpireInterval, cfg.ExpireGrace = expire, grace

	if v := getenv("AUTO_VERIFY_LISTENERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("AUTO_VERIFY_LISTENERS must be a boolean: %w", err)
		}
		cfg.AutoVerifyListeners = b
	}
	return cfg, nil
}

func seconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return time.Duration(n) * time.Second, nil
}
