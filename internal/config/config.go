package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port    string
	Env     string
	LogMode string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT (tokens are issued by the external auth provider)
	JWTSecret string

	// Generation
	LLMProvider       string
	OpenRouterAPIKey  string
	OpenRouterURL     string
	OpenRouterModel   string
	LLMTemperature    float64
	GeminiAPIKey      string
	GeminiModel       string
	GenerationTimeout time.Duration

	// Usage
	FreeGenerationLimit int
	WorkspaceTTL        time.Duration

	// Storage
	StoragePath    string
	MaxUploadBytes int64

	// Razorpay
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	PlansFile             string

	// Frontend
	FrontendURL string
}

// WebhookConfig is the reduced configuration of the standalone webhook deployable.
type WebhookConfig struct {
	Port                  string
	Env                   string
	LogMode               string
	DatabaseURL           string
	RedisURL              string
	RazorpayWebhookSecret string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		LogMode:     getEnvOrDefault("LOG_MODE", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		// A missing completion key is reported per request, not at boot.
		LLMProvider:       getEnvOrDefault("LLM_PROVIDER", "openrouter"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL:     getEnvOrDefault("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterModel:   getEnvOrDefault("OPENROUTER_MODEL", "mistralai/mistral-7b-instruct"),
		LLMTemperature:    getEnvAsFloatOrDefault("LLM_TEMPERATURE", 0.7),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GenerationTimeout: getEnvAsDurationOrDefault("GENERATION_TIMEOUT_SECONDS", time.Second, 120*time.Second),

		FreeGenerationLimit: getEnvAsIntOrDefault("FREE_GENERATION_LIMIT", 3),
		WorkspaceTTL:        getEnvAsDurationOrDefault("WORKSPACE_TTL_HOURS", time.Hour, 24*time.Hour),

		StoragePath:    getEnvOrDefault("STORAGE_PATH", "./uploads"),
		MaxUploadBytes: int64(getEnvAsIntOrDefault("MAX_UPLOAD_MB", 25)) * 1024 * 1024,

		RazorpayKeyID:         mustGetEnv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     mustGetEnv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: mustGetEnv("RAZORPAY_WEBHOOK_SECRET"),
		PlansFile:             getEnvOrDefault("PLANS_FILE", "config/plans.yaml"),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate reports settings that parse but cannot work together.
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.LLMProvider) {
	case "openrouter", "gemini":
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER %q is not one of openrouter, gemini", c.LLMProvider))
	}
	if c.FreeGenerationLimit < 0 {
		problems = append(problems, "FREE_GENERATION_LIMIT must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// LoadWebhook reads only what the webhook function needs. Redis is optional;
// without it duplicate deliveries are not filtered.
func LoadWebhook() *WebhookConfig {
	godotenv.Load()

	return &WebhookConfig{
		Port:                  getEnvOrDefault("PORT", "8081"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LogMode:               getEnvOrDefault("LOG_MODE", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		RazorpayWebhookSecret: mustGetEnv("RAZORPAY_WEBHOOK_SECRET"),
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault reads a whole number of units. Zero or negative
// values fall back to the default.
func getEnvAsDurationOrDefault(key string, unit, defaultVal time.Duration) time.Duration {
	n := getEnvAsIntOrDefault(key, 0)
	if n <= 0 {
		return defaultVal
	}
	return time.Duration(n) * unit
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
