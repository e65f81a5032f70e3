package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Catalog (STAC) configuration.
	CatalogBaseURL   string
	CatalogTimeout   time.Duration
	CatalogPageLimit int
	CatalogMaxPages  int

	// Collection is the catalog collection holding the covariate rasters.
	// Always an explicit choice; the pipeline refuses to guess one.
	Collection string

	// Zonal-statistics service configuration.
	ZonalBaseURL string
	ZonalTimeout time.Duration

	// Extraction parameters.
	Stat          string
	WindowMonths  int
	BufferRadiusM float64
	WorkerCount   int

	// Survey store and exports.
	DBPath        string
	OutputCSVPath string

	// Optional result publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	catalogTimeout, err := envDuration("CATALOG_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	zonalTimeout, err := envDuration("ZONAL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	pageLimit, err := envInt("CATALOG_PAGE_LIMIT", 100)
	if err != nil {
		return nil, err
	}
	maxPages, err := envInt("CATALOG_MAX_PAGES", 500)
	if err != nil {
		return nil, err
	}
	windowMonths, err := envInt("WINDOW_MONTHS", 12)
	if err != nil {
		return nil, err
	}
	workerCount, err := envInt("WORKER_COUNT", 4)
	if err != nil {
		return nil, err
	}
	bufferRadius, err := envFloat("BUFFER_RADIUS_M", 450)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		CatalogBaseURL:   os.Getenv("CATALOG_BASE_URL"),
		CatalogTimeout:   catalogTimeout,
		CatalogPageLimit: pageLimit,
		CatalogMaxPages:  maxPages,
		Collection:       os.Getenv("CATALOG_COLLECTION"),
		ZonalBaseURL:     os.Getenv("ZONAL_BASE_URL"),
		ZonalTimeout:     zonalTimeout,
		Stat:             envOrDefault("ZONAL_STAT", "max"),
		WindowMonths:     windowMonths,
		BufferRadiusM:    bufferRadius,
		WorkerCount:      workerCount,
		DBPath:           envOrDefault("DB_PATH", "data/surveys.db"),
		OutputCSVPath:    os.Getenv("OUTPUT_CSV_PATH"),
		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       envOrDefault("KAFKA_TOPIC", "covariate-results"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
	}

	if cfg.CatalogBaseURL == "" {
		return nil, errors.New("CATALOG_BASE_URL is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("CATALOG_COLLECTION is required")
	}
	if cfg.ZonalBaseURL == "" {
		return nil, errors.New("ZONAL_BASE_URL is required")
	}
	if cfg.WindowMonths <= 0 {
		return nil, errors.New("WINDOW_MONTHS must be positive")
	}
	if cfg.WorkerCount <= 0 {
		return nil, errors.New("WORKER_COUNT must be positive")
	}
	if cfg.BufferRadiusM <= 0 {
		return nil, errors.New("BUFFER_RADIUS_M must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
