package pipeline_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-mart-etl/internal/config"
	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
	"github.com/couchcryptid/forecast-mart-etl/internal/observability"
	"github.com/couchcryptid/forecast-mart-etl/internal/pipeline"
	"github.com/couchcryptid/forecast-mart-etl/internal/report"
	"github.com/couchcryptid/forecast-mart-etl/internal/storage"
)

var runDate = time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC)

// --- mocks ---

type mockFetcher struct {
	payload []byte
	err     error
	calls   int
}

func (m *mockFetcher) Fetch(_ context.Context, _ domain.LocationSpec, rd time.Time) (domain.RawForecast, error) {
	m.calls++
	if m.err != nil {
		return domain.RawForecast{}, m.err
	}
	return domain.RawForecast{
		RunDate:   rd,
		FetchedAt: rd.Add(6 * time.Hour),
		Payload:   m.payload,
	}, nil
}

type mockPublisher struct {
	records []domain.RunRecord
	err     error
}

func (m *mockPublisher) PublishRunRecord(_ context.Context, rec domain.RunRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

// --- fixtures ---

// forecastPayload builds an hourly payload whose timestamps cover one full
// America/Montreal calendar day (05:00Z through 04:00Z the next day).
// mutate, when non-nil, edits the value arrays before marshalling.
func forecastPayload(t *testing.T, hours int, mutate func(probs, precip, temps, winds []float64)) []byte {
	t.Helper()
	start := runDate.Add(5 * time.Hour)

	times := make([]string, hours)
	probs := make([]float64, hours)
	precip := make([]float64, hours)
	temps := make([]float64, hours)
	winds := make([]float64, hours)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04")
		probs[i] = float64((i * 3) % 101)
		precip[i] = 0.2
		temps[i] = -5
		winds[i] = 15
	}
	if mutate != nil {
		mutate(probs, precip, temps, winds)
	}

	payload, err := json.Marshal(map[string]any{
		"latitude":  45.5,
		"longitude": -73.59,
		"timezone":  "UTC",
		"hourly": map[string]any{
			"time":                      times,
			"precipitation_probability": probs,
			"precipitation":             precip,
			"temperature_2m":            temps,
			"wind_speed_10m":            winds,
		},
	})
	require.NoError(t, err)
	return payload
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:    filepath.Join(dir, "data"),
		ReportsDir: filepath.Join(dir, "reports"),
		Location: domain.LocationSpec{
			LocationID: "MTL",
			City:       "Montreal",
			Latitude:   45.5088,
			Longitude:  -73.5878,
			Timezone:   "America/Montreal",
		},
		HorizonHours:        24,
		ExpectedHoursPerDay: 24,
		FreshnessTolerance:  24 * time.Hour,
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, fetcher pipeline.ForecastFetcher, publisher pipeline.RunPublisher) *pipeline.Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p := pipeline.New(
		fetcher,
		storage.New(cfg.DataDir, cfg.ReportsDir, logger),
		report.New(cfg.DataDir, cfg.ReportsDir, logger),
		publisher,
		cfg,
		logger,
		observability.NewMetricsForTesting(),
	)
	p.SetClock(clockwork.NewFakeClockAt(runDate.Add(7 * time.Hour)))
	return p
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// --- tests ---

func TestRun_HappyPath(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &mockFetcher{payload: forecastPayload(t, 24, nil)}
	publisher := &mockPublisher{}
	p := newTestPipeline(t, cfg, fetcher, publisher)

	rec, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPass, rec.Status)
	assert.Equal(t, "2026-01-24", rec.RunDate)
	assert.NotEmpty(t, rec.RunID)
	assert.Empty(t, rec.Error)
	assert.Zero(t, rec.FindingCounts.Errors)
	assert.Zero(t, rec.FindingCounts.Warnings)

	for _, stage := range []string{
		domain.StageFetch, domain.StageNormalize, domain.StageAggregate,
		domain.StageValidate, domain.StageWriteStar, domain.StageReport,
	} {
		assert.Equal(t, "success", rec.StageStatuses[stage], stage)
	}

	// 24 hourly rows, 1 daily, 1 dim_date, 1 dim_location.
	starDir := rec.ArtifactPaths["star"]
	require.NotEmpty(t, starDir)
	assert.Len(t, readCSV(t, filepath.Join(starDir, storage.FactHourlyFile)), 25)
	assert.Len(t, readCSV(t, filepath.Join(starDir, storage.FactDailyFile)), 2)
	assert.Len(t, readCSV(t, filepath.Join(starDir, storage.DimDateFile)), 2)
	assert.Len(t, readCSV(t, filepath.Join(starDir, storage.DimLocationFile)), 2)

	for _, name := range []string{
		"raw", "forecast_hourly", "dim_date", "dim_location", "forecast_summary",
		"validation", "exceptions", "run_record", "run_report",
	} {
		path := rec.ArtifactPaths[name]
		require.NotEmpty(t, path, name)
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, name)
	}

	require.Len(t, publisher.records, 1)
	assert.Equal(t, domain.StatusPass, publisher.records[0].Status)
}

func TestRun_ValidationErrorFailsRunButWritesEverything(t *testing.T) {
	cfg := testConfig(t)
	payload := forecastPayload(t, 24, func(probs, _, _, _ []float64) {
		probs[3] = 150
	})
	p := newTestPipeline(t, cfg, &mockFetcher{payload: payload}, nil)

	rec, err := p.Run(context.Background(), runDate)
	require.NoError(t, err, "validation failure is a verdict, not a fatal error")

	assert.Equal(t, domain.StatusFail, rec.Status)
	assert.Equal(t, 1, rec.FindingCounts.Errors)
	assert.Equal(t, "success", rec.StageStatuses[domain.StageWriteStar])

	// Star tables and the exceptions report both exist.
	assert.FileExists(t, filepath.Join(rec.ArtifactPaths["star"], storage.FactHourlyFile))
	exceptions := readCSV(t, rec.ArtifactPaths["exceptions"])
	require.Len(t, exceptions, 2)
	assert.Equal(t, "precip_prob_range", exceptions[1][1])
	assert.Equal(t, "ERROR", exceptions[1][2])

	var record domain.RunRecord
	data, readErr := os.ReadFile(rec.ArtifactPaths["run_record"])
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, domain.StatusFail, record.Status)
}

func TestRun_IncompleteDayWarnsAndPasses(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg, &mockFetcher{payload: forecastPayload(t, 20, nil)}, nil)

	rec, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPass, rec.Status)
	assert.Zero(t, rec.FindingCounts.Errors)
	assert.Equal(t, 1, rec.FindingCounts.Warnings)

	exceptions := readCSV(t, rec.ArtifactPaths["exceptions"])
	require.Len(t, exceptions, 2)
	assert.Equal(t, "completeness_hours", exceptions[1][1])
	assert.Equal(t, "WARNING", exceptions[1][2])
}

func TestRun_FetchFailureIsFatalButLeavesRunRecord(t *testing.T) {
	cfg := testConfig(t)
	fetchErr := &domain.ProviderError{Op: "forecast request", Err: errors.New("connection refused")}
	publisher := &mockPublisher{}
	p := newTestPipeline(t, cfg, &mockFetcher{err: fetchErr}, publisher)

	rec, err := p.Run(context.Background(), runDate)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*domain.ProviderError))

	assert.Equal(t, domain.StatusFail, rec.Status)
	assert.Contains(t, rec.Error, "connection refused")
	assert.Equal(t, "failed", rec.StageStatuses[domain.StageFetch])
	assert.NotContains(t, rec.StageStatuses, domain.StageNormalize)

	// The failure is inspectable on disk and was pushed downstream.
	var record domain.RunRecord
	data, readErr := os.ReadFile(rec.ArtifactPaths["run_record"])
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, domain.StatusFail, record.Status)
	assert.NotEmpty(t, record.Error)

	require.Len(t, publisher.records, 1)
	assert.Equal(t, domain.StatusFail, publisher.records[0].Status)
}

func TestRun_MalformedPayloadAbortsAtNormalize(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg, &mockFetcher{payload: []byte(`{"latitude": 45.5}`)}, nil)

	rec, err := p.Run(context.Background(), runDate)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*domain.DataShapeError))

	// The raw payload was persisted before the shape check tripped.
	assert.Equal(t, "success", rec.StageStatuses[domain.StageFetch])
	assert.Equal(t, "failed", rec.StageStatuses[domain.StageNormalize])
	assert.FileExists(t, rec.ArtifactPaths["raw"])
}

func TestRun_PublishFailureDoesNotChangeVerdict(t *testing.T) {
	cfg := testConfig(t)
	publisher := &mockPublisher{err: errors.New("broker down")}
	p := newTestPipeline(t, cfg, &mockFetcher{payload: forecastPayload(t, 24, nil)}, publisher)

	rec, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, rec.Status)
	assert.Len(t, publisher.records, 1)
}

func TestRun_RerunSameDateIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &mockFetcher{payload: forecastPayload(t, 24, nil)}
	p := newTestPipeline(t, cfg, fetcher, nil)

	first, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.ArtifactPaths["star"], second.ArtifactPaths["star"])

	// Same inputs, same star bytes.
	a, err := os.ReadFile(filepath.Join(first.ArtifactPaths["star"], storage.FactHourlyFile))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(second.ArtifactPaths["star"], storage.FactHourlyFile))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_DistinctDatesDoNotOverwriteEachOther(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg, &mockFetcher{payload: forecastPayload(t, 24, nil)}, nil)

	first, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)

	// Second run targets the next date; its payload still describes Jan 24,
	// which is fine for checking artifact isolation.
	second, err := p.Run(context.Background(), runDate.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.NotEqual(t, first.ArtifactPaths["star"], second.ArtifactPaths["star"])
	assert.NotEqual(t, first.ArtifactPaths["run_record"], second.ArtifactPaths["run_record"])
	assert.FileExists(t, filepath.Join(first.ArtifactPaths["star"], storage.FactHourlyFile))
}
