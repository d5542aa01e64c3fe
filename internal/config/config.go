package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/traffic-safety-pipeline/internal/pipeline"
)

type AppConfig struct {
	// DataDir holds the committed master CSV files.
	DataDir string

	// FetchInterval controls how often the scheduler runs the pipeline.
	FetchInterval time.Duration

	// WindowDays is the trailing fetch window size in days.
	WindowDays int

	// SocrataAppToken raises the NYC Open Data rate limit; optional.
	SocrataAppToken string

	// Retry bounds the per-kind fetch retry loop.
	Retry pipeline.RetryPolicy

	HTTPTimeout time.Duration
	RunTimeout  time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.DataDir = getenvDefault("DATA_DIR", "data/processed")
	cfg.SocrataAppToken = os.Getenv("SOCRATA_APP_TOKEN")
	cfg.Port = getenvDefault("PORT", "8080")

	interval, err := getenvDuration("FETCH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	cfg.FetchInterval = interval

	cfg.WindowDays = getenvInt("WINDOW_DAYS", 30)
	if cfg.WindowDays <= 0 {
		return nil, fmt.Errorf("WINDOW_DAYS must be positive")
	}

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cfg.RunTimeout, err = getenvDuration("RUN_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}

	retry := pipeline.DefaultRetryPolicy()
	retry.MaxAttempts = getenvInt("FETCH_MAX_ATTEMPTS", retry.MaxAttempts)
	if retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	retry.InitialDelay, err = getenvDuration("FETCH_RETRY_INITIAL", retry.InitialDelay.String())
	if err != nil {
		return nil, err
	}
	retry.MaxDelay, err = getenvDuration("FETCH_RETRY_MAX", retry.MaxDelay.String())
	if err != nil {
		return nil, err
	}
	cfg.Retry = retry

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
