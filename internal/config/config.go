// Package config provides configuration loading and validation for the service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the service needs to talk to its collaborators.
// Values come from the environment (optionally seeded from a .env file).
type Config struct {
	Port int

	// Collaborator endpoints and credentials
	DatabaseURL    string
	RedisAddr      string
	GeminiAPIKey   string
	AdzunaAppID    string
	AdzunaAppKey   string
	AdzunaCountry  string // "fr", "gb", "us", ...
	FTClientID     string // France Travail (ex Pôle Emploi)
	FTClientSecret string
	OCREndpoint    string
	OCRLanguage    string

	// Mailbox (Gmail) OAuth application credentials. The per-user tokens
	// live in the credential store, not here.
	GoogleClientID     string
	GoogleClientSecret string

	// Behaviour
	DefaultLocation      string // search location of last resort
	RefreshIntervalHours int    // listings snapshot refresh cadence
	ClassifyRetryOther   bool   // retry classification once after an "other" fallback
	Debug                bool
	JSONLogs             bool
}

// requiredEnv mirrors the boot-time check the service has always done:
// fail fast and name the missing variable instead of limping along.
var requiredEnv = []string{
	"DATABASE_URL",
	"GEMINI_API_KEY",
	"FT_CLIENT_ID",
	"FT_CLIENT_SECRET",
	"ADZUNA_APP_ID",
	"ADZUNA_APP_KEY",
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file is the normal production case.
	_ = godotenv.Load()

	for _, v := range requiredEnv {
		if os.Getenv(v) == "" {
			return nil, fmt.Errorf("missing required environment variable: %s", v)
		}
	}

	cfg := &Config{
		Port:                 envInt("PORT", 4000),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		AdzunaAppID:          os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:         os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry:        getenv("ADZUNA_COUNTRY", "fr"),
		FTClientID:           os.Getenv("FT_CLIENT_ID"),
		FTClientSecret:       os.Getenv("FT_CLIENT_SECRET"),
		OCREndpoint:          os.Getenv("OCR_ENDPOINT"),
		OCRLanguage:          getenv("OCR_LANG", "fra"),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		DefaultLocation:      getenv("DEFAULT_LOCATION", "Paris"),
		RefreshIntervalHours: envInt("REFRESH_INTERVAL_HOURS", 1),
		ClassifyRetryOther:   envBool("CLASSIFY_RETRY_OTHER", false),
		Debug:                envBool("DEBUG", false),
		JSONLogs:             envBool("JSON_LOGS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: invalid port %d", c.Port)
	}
	if c.RefreshIntervalHours <= 0 {
		return fmt.Errorf("config error: refresh interval must be positive, got %d", c.RefreshIntervalHours)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
