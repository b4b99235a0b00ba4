package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	RedisURL           string
	DatabaseURL        string
	DatabaseSecretName string
	AWSRegion          string

	DefaultProvider string
	BedrockModelID  string
	OllamaBaseURL   string
	OllamaModel     string

	SummaryCacheTTL time.Duration
	ReplayDelay     time.Duration

	RateLimitRPM   int
	DailyBudgetUSD float64

	UsageQueueURL string
	AlertTopicARN string
	APIKeyHash    string
	OTLPEndpoint  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:               getEnv("ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisURL:           getEnv("REDIS_URL", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DatabaseSecretName: getEnv("DATABASE_SECRET_NAME", ""),
		AWSRegion:          getEnv("AWS_REGION", ""),
		DefaultProvider:    getEnv("DEFAULT_PROVIDER", "bedrock"),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", ""),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3"),
		SummaryCacheTTL:    getDurationEnv("SUMMARY_CACHE_TTL", 0),
		ReplayDelay:        getMillisEnv("REPLAY_DELAY_MS", 50*time.Millisecond),
		RateLimitRPM:       getIntEnv("RATE_LIMIT_RPM", 60),
		DailyBudgetUSD:     getFloatEnv("DAILY_BUDGET_USD", 0),
		UsageQueueURL:      getEnv("USAGE_QUEUE_URL", ""),
		AlertTopicARN:      getEnv("ALERT_TOPIC_ARN", ""),
		APIKeyHash:         getEnv("API_KEY_HASH", ""),
		OTLPEndpoint:       getEnv("OTLP_ENDPOINT", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
