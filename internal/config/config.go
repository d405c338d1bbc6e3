package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// HTTP
	HTTPAddr      string
	SessionSecret string
	BaseURL       string

	// Database (SurrealDB)
	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string

	// Avatar storage
	StorageDir     string
	StorageBaseURL string

	// Geocoding provider endpoint. Optional; geocoding degrades to
	// cache-only lookups when unset.
	GeocodingURL string

	// Chat tuning
	ChatPollInterval time.Duration
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		BaseURL:          getEnv("APP_BASE_URL", "http://localhost:8080"),
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		StorageDir:       getEnv("STORAGE_DIR", "data/uploads"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "/uploads"),
		GeocodingURL:     os.Getenv("GEOCODING_URL"),
		ChatPollInterval: getEnvDuration("CHAT_POLL_INTERVAL", 15*time.Second),
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}
	if cfg.SessionSecret == "" {
		log.Fatal("Required environment variable SESSION_SECRET is not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
