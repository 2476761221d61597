// Package config loads runtime configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the process needs to run.
type Config struct {
	TelegramToken string
	GeminiAPIKey  string
	GeminiModel   string
	GitHubToken   string

	DBType      string // "sqlite" or "postgres"
	DBPath      string // sqlite file path
	DatabaseURL string // postgres DSN

	QuestionsPerSession int
	MinTopicWords       int
	EnableScheduler     bool
}

// Load reads configuration from the environment. A missing .env file is not
// an error; missing required variables are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		DBType:              getEnv("DB_TYPE", "sqlite"),
		DBPath:              getEnv("DB_PATH", "studyagent.db"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		QuestionsPerSession: getEnvInt("QUESTIONS_PER_SESSION", 5),
		MinTopicWords:       getEnvInt("MIN_TOPIC_WORDS", 50),
		EnableScheduler:     getEnvBool("ENABLE_SCHEDULER", true),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.DBType != "sqlite" && cfg.DBType != "postgres" {
		return nil, fmt.Errorf("unsupported DB_TYPE %q (use sqlite or postgres)", cfg.DBType)
	}
	if cfg.DBType == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when DB_TYPE=postgres")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
