package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir    string
	ReportsDir string

	Location domain.LocationSpec

	ProviderBaseURL string
	ProviderTimeout time.Duration

	HorizonHours        int
	ExpectedHoursPerDay int
	FreshnessTolerance  time.Duration

	LogLevel  string
	LogFormat string

	// HTTPAddr enables the health/metrics listener when non-empty.
	HTTPAddr string

	// Kafka run-record publishing, disabled when no brokers are configured.
	KafkaBrokers  []string
	KafkaRunTopic string
}

// KafkaEnabled reports whether run records should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	freshnessTolerance, err := parseDuration("FRESHNESS_TOLERANCE", "24h")
	if err != nil {
		return nil, err
	}
	horizonHours, err := parsePositiveInt("HORIZON_HOURS", 48)
	if err != nil {
		return nil, err
	}
	expectedHours, err := parsePositiveInt("EXPECTED_HOURS_PER_DAY", 24)
	if err != nil {
		return nil, err
	}
	latitude, err := parseFloat("LOCATION_LAT", 45.5088)
	if err != nil {
		return nil, err
	}
	longitude, err := parseFloat("LOCATION_LON", -73.5878)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:    envOrDefault("DATA_DIR", "./data"),
		ReportsDir: envOrDefault("REPORTS_DIR", "./reports"),

		Location: domain.LocationSpec{
			LocationID: envOrDefault("LOCATION_ID", "MTL"),
			City:       envOrDefault("LOCATION_CITY", "Montreal"),
			Latitude:   latitude,
			Longitude:  longitude,
			Timezone:   envOrDefault("LOCATION_TIMEZONE", "America/Montreal"),
		},

		ProviderBaseURL: envOrDefault("PROVIDER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		ProviderTimeout: providerTimeout,

		HorizonHours:        horizonHours,
		ExpectedHoursPerDay: expectedHours,
		FreshnessTolerance:  freshnessTolerance,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		HTTPAddr: os.Getenv("HTTP_ADDR"),

		KafkaBrokers:  parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaRunTopic: envOrDefault("KAFKA_RUN_TOPIC", "forecast-run-records"),
	}

	if cfg.Location.LocationID == "" {
		return nil, errors.New("LOCATION_ID is required")
	}
	if cfg.Location.Timezone == "" {
		return nil, errors.New("LOCATION_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(cfg.Location.Timezone); err != nil {
		return nil, fmt.Errorf("invalid LOCATION_TIMEZONE: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return f, nil
}

func parseBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
