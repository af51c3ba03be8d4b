package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the excluded deploy layer owns: the SQLite
// file path, the daily free quota, Stripe and LLM credentials.
type Config struct {
	ListenAddr string
	DBPath     string
	AppBaseURL string

	FreePerDay     int
	CreditsPerSale int

	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
}

func Load() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "tarot.db"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),

		FreePerDay:     getEnvInt("FREE_PER_DAY", 1),
		CreditsPerSale: getEnvInt("CREDITS_PER_SALE", 1),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		LLMAPIKey:  getEnv("ARK_API_KEY", ""),
		LLMBaseURL: getEnv("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		LLMModel:   getEnv("ARK_MODEL", ""),
	}
}

type CacheConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DefaultTTL    time.Duration
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DefaultTTL:    15 * time.Minute,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
