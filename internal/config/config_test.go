package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./reports", cfg.ReportsDir)
	assert.Equal(t, "MTL", cfg.Location.LocationID)
	assert.Equal(t, "Montreal", cfg.Location.City)
	assert.Equal(t, 45.5088, cfg.Location.Latitude)
	assert.Equal(t, -73.5878, cfg.Location.Longitude)
	assert.Equal(t, "America/Montreal", cfg.Location.Timezone)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.ProviderBaseURL)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 48, cfg.HorizonHours)
	assert.Equal(t, 24, cfg.ExpectedHoursPerDay)
	assert.Equal(t, 24*time.Hour, cfg.FreshnessTolerance)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "forecast-run-records", cfg.KafkaRunTopic)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/etl/data")
	t.Setenv("REPORTS_DIR", "/var/lib/etl/reports")
	t.Setenv("LOCATION_ID", "YUL")
	t.Setenv("LOCATION_CITY", "Dorval")
	t.Setenv("LOCATION_LAT", "45.4706")
	t.Setenv("LOCATION_LON", "-73.7408")
	t.Setenv("LOCATION_TIMEZONE", "America/Toronto")
	t.Setenv("PROVIDER_BASE_URL", "http://localhost:9999/v1/forecast")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("HORIZON_HOURS", "72")
	t.Setenv("EXPECTED_HOURS_PER_DAY", "12")
	t.Setenv("FRESHNESS_TOLERANCE", "6h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_RUN_TOPIC", "custom-run-records")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/etl/data", cfg.DataDir)
	assert.Equal(t, "/var/lib/etl/reports", cfg.ReportsDir)
	assert.Equal(t, "YUL", cfg.Location.LocationID)
	assert.Equal(t, "Dorval", cfg.Location.City)
	assert.Equal(t, 45.4706, cfg.Location.Latitude)
	assert.Equal(t, -73.7408, cfg.Location.Longitude)
	assert.Equal(t, "America/Toronto", cfg.Location.Timezone)
	assert.Equal(t, "http://localhost:9999/v1/forecast", cfg.ProviderBaseURL)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 72, cfg.HorizonHours)
	assert.Equal(t, 12, cfg.ExpectedHoursPerDay)
	assert.Equal(t, 6*time.Hour, cfg.FreshnessTolerance)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-run-records", cfg.KafkaRunTopic)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "PROVIDER_TIMEOUT", "not-a-duration"},
		{"negative timeout", "PROVIDER_TIMEOUT", "-1s"},
		{"bad horizon", "HORIZON_HOURS", "abc"},
		{"zero horizon", "HORIZON_HOURS", "0"},
		{"bad expected hours", "EXPECTED_HOURS_PER_DAY", "-3"},
		{"bad latitude", "LOCATION_LAT", "north"},
		{"bad timezone", "LOCATION_TIMEZONE", "Mars/Olympus_Mons"},
		{"bad freshness", "FRESHNESS_TOLERANCE", "yesterday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyTopicFallsBackToDefault(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_RUN_TOPIC", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "forecast-run-records", cfg.KafkaRunTopic)
}
