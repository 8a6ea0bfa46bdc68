package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Fetch defaults
	Location   string
	RadiusKm   int
	FetchCount int
	MaxRetries int

	// Session tuning
	PageTimeoutSec     int
	ElementTimeoutSec  int
	MinNavDelayMs      int
	MaxNavDelayMs      int
	FailureThreshold   int
	RefreshSleepMinSec int
	RefreshSleepMaxSec int

	MaxConcurrency int

	RulesPath  string
	ReportPath string
	ChromeBin  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "searcher"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "searcher123"),
		PostgresDB:       getEnv("POSTGRES_DB", "business_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		Location:   getEnv("SEARCH_LOCATION", "sunshine-coast-qld"),
		RadiusKm:   getEnvInt("SEARCH_RADIUS_KM", 50),
		FetchCount: getEnvInt("FETCH_COUNT", 10),
		MaxRetries: getEnvInt("MAX_RETRIES", 3),

		PageTimeoutSec:     getEnvInt("PAGE_TIMEOUT_SEC", 30),
		ElementTimeoutSec:  getEnvInt("ELEMENT_TIMEOUT_SEC", 5),
		MinNavDelayMs:      getEnvInt("MIN_NAV_DELAY_MS", 1000),
		MaxNavDelayMs:      getEnvInt("MAX_NAV_DELAY_MS", 3000),
		FailureThreshold:   getEnvInt("DETAIL_FAILURE_THRESHOLD", 5),
		RefreshSleepMinSec: getEnvInt("REFRESH_SLEEP_MIN_SEC", 5),
		RefreshSleepMaxSec: getEnvInt("REFRESH_SLEEP_MAX_SEC", 10),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),

		RulesPath:  getEnv("FILTER_RULES_PATH", ""),
		ReportPath: getEnv("REPORT_OUTPUT_PATH", "./output/pass_listings.csv"),
		ChromeBin:  getEnv("CHROME_BIN", ""),
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
