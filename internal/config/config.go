package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Port             string
	AllowedOrigins   []string
	DatabaseURL      string
	AutoMigrate      bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CartTTL          time.Duration
	AuthSecret       string
	AccessTokenTTL   time.Duration
	LogLevel         string
	LogFormat        string
	MetricsNamespace string
	Currency         string
	BusinessName     string
	BusinessLocation *time.Location
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	redisDB, err := strconv.Atoi(valueOrDefault(k.String("REDIS_DB"), "0"))
	if err != nil || redisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be a non-negative integer")
	}

	location, err := time.LoadLocation(valueOrDefault(k.String("BUSINESS_TZ"), "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("BUSINESS_TZ must be an IANA time zone: %w", err)
	}

	cfg := Config{
		Port:             valueOrDefault(k.String("PORT"), "8080"),
		AllowedOrigins:   splitAndTrim(valueOrDefault(k.String("ALLOWED_ORIGINS"), "http://127.0.0.1:3000")),
		DatabaseURL:      strings.TrimSpace(k.String("DATABASE_URL")),
		AutoMigrate:      parseBool(k.String("AUTO_MIGRATE")),
		RedisAddr:        strings.TrimSpace(k.String("REDIS_ADDR")),
		RedisPassword:    k.String("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		CartTTL:          parseDuration(k.String("CART_TTL"), "12h"),
		AuthSecret:       strings.TrimSpace(k.String("AUTH_SECRET")),
		AccessTokenTTL:   parseDuration(k.String("ACCESS_TOKEN_TTL"), "8h"),
		LogLevel:         valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:        valueOrDefault(k.String("LOG_FORMAT"), "json"),
		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "feedpos"),
		Currency:         strings.ToUpper(valueOrDefault(k.String("CURRENCY"), "KES")),
		BusinessName:     valueOrDefault(k.String("BUSINESS_NAME"), "Feed Store"),
		BusinessLocation: location,
	}
	return cfg, nil
}

func (c Config) Address() string {
	port := strings.TrimSpace(c.Port)
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
