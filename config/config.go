package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all process configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel     string
	PipelinePath string

	// Acquisition
	SearchQuery    string
	AppIDs         []string
	SearchHits     int
	ReviewsPerApp  int
	Lang           string
	Country        string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RawDir         string
	ChromeBin      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "reviews"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "reviews123"),
		PostgresDB:       getEnv("POSTGRES_DB", "app_reviews"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PipelinePath: getEnv("PIPELINE_CONFIG", ""),

		SearchQuery:    getEnv("SEARCH_QUERY", "AI note taking"),
		AppIDs:         getEnvList("APP_IDS"),
		SearchHits:     getEnvInt("SEARCH_HITS", 20),
		ReviewsPerApp:  getEnvInt("REVIEWS_PER_APP", 200),
		Lang:           getEnv("LANG_CODE", "en"),
		Country:        getEnv("COUNTRY", "us"),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RawDir:         getEnv("RAW_DIR", "./data/raw"),
		ChromeBin:      getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
