package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EventSourceLongPoll and EventSourceWebhook select how inbound VK events
// reach the dispatcher.
const (
	EventSourceLongPoll = "longpoll"
	EventSourceWebhook  = "webhook"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	VKToken        string
	VKAPIVersion   string
	VKGroupID      int
	VKEventSource  string
	VKConfirmation string
	VKSecret       string

	DatabaseURL string
	RedisAddr   string

	CitiesFile string

	WorkerCount  int
	QueueDepth   int
	EventTimeout time.Duration
	MaxAttempts  int
}

// Load reads configuration from environment variables. A .env file is
// honored when present so local runs match deployed ones.
func Load() *Config {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		VKToken:        getEnv("VK_TOKEN", ""),
		VKAPIVersion:   getEnv("VK_API_VERSION", "5.131"),
		VKGroupID:      getEnvAsInt("VK_GROUP_ID", 0),
		VKEventSource:  strings.ToLower(strings.TrimSpace(getEnv("VK_EVENT_SOURCE", EventSourceLongPoll))),
		VKConfirmation: getEnv("VK_CONFIRMATION", ""),
		VKSecret:       getEnv("VK_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		CitiesFile: getEnv("CITIES_FILE", "cities.json"),

		WorkerCount:  getEnvAsInt("WORKER_COUNT", 4),
		QueueDepth:   getEnvAsInt("QUEUE_DEPTH", 64),
		EventTimeout: getEnvAsDuration("EVENT_TIMEOUT", 25*time.Second),
		MaxAttempts:  getEnvAsInt("EVENT_MAX_ATTEMPTS", 3),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
