// Package storage persists run artifacts: the raw capture, the processed
// tables, and the star-schema export consumed by BI tooling.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
)

// Store owns the data-side artifacts of a run. Report-side artifacts
// (validation, exceptions, run record) belong to the reporter.
type Store struct {
	dataDir    string
	reportsDir string
	logger     *slog.Logger
}

// New creates a Store rooted at the configured output directories.
func New(dataDir, reportsDir string, logger *slog.Logger) *Store {
	return &Store{dataDir: dataDir, reportsDir: reportsDir, logger: logger}
}

// Paths resolves the artifact layout for a run date.
func (s *Store) Paths(runDate time.Time) Paths {
	return NewPaths(s.dataDir, s.reportsDir, runDate)
}

// SaveRaw persists the provider payload verbatim under the raw path for the
// forecast's run date.
func (s *Store) SaveRaw(raw domain.RawForecast) (string, error) {
	path := s.Paths(raw.RunDate).RawJSON
	if err := writeFile(path, raw.Payload); err != nil {
		return "", err
	}
	s.logger.Info("raw forecast saved", "path", path, "bytes", len(raw.Payload))
	return path, nil
}

// SaveProcessed writes the wide hourly table, both dimensions, and the daily
// summary under the processed path for the run date. Returns artifact paths
// keyed by table name.
func (s *Store) SaveProcessed(
	runDate time.Time,
	hourly []domain.HourlyRecord,
	daily []domain.DailyAggregate,
	dimDates []domain.DimDate,
	dimLoc domain.DimLocation,
	loc domain.LocationSpec,
) (map[string]string, error) {
	p := s.Paths(runDate)

	if err := WriteCSV(p.ProcessedHourly, processedHourlyHeader, processedHourlyRows(runDate, hourly, loc)); err != nil {
		return nil, err
	}
	if err := WriteCSV(p.ProcessedDimDate, dimDateHeader, dimDateRows(dimDates)); err != nil {
		return nil, err
	}
	if err := WriteCSV(p.ProcessedDimLoc, dimLocationHeader, dimLocationRows(dimLoc)); err != nil {
		return nil, err
	}
	if err := WriteCSV(p.ProcessedSummary, factDailyHeader, factDailyRows(daily)); err != nil {
		return nil, err
	}

	s.logger.Info("processed tables saved", "dir", filepath.Dir(p.ProcessedHourly), "hourly_rows", len(hourly))
	return map[string]string{
		"forecast_hourly":  p.ProcessedHourly,
		"dim_date":         p.ProcessedDimDate,
		"dim_location":     p.ProcessedDimLoc,
		"forecast_summary": p.ProcessedSummary,
	}, nil
}

// WriteStar emits the four star-schema tables for the run date. All four are
// serialized into a temporary directory first and moved into place with a
// single rename, so a crash mid-write never leaves a star directory mixing
// old and new tables.
func (s *Store) WriteStar(
	runDate time.Time,
	hourly []domain.HourlyRecord,
	daily []domain.DailyAggregate,
	dimDates []domain.DimDate,
	dimLoc domain.DimLocation,
) (string, error) {
	starDir := s.Paths(runDate).StarDir
	parent := filepath.Dir(starDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create star root: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parent, "."+filepath.Base(starDir)+".tmp-")
	if err != nil {
		return "", fmt.Errorf("create star staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tables := []struct {
		file   string
		header []string
		rows   [][]string
	}{
		{FactHourlyFile, factHourlyHeader, factHourlyRows(hourly)},
		{FactDailyFile, factDailyHeader, factDailyRows(daily)},
		{DimDateFile, dimDateHeader, dimDateRows(dimDates)},
		{DimLocationFile, dimLocationHeader, dimLocationRows(dimLoc)},
	}
	for _, table := range tables {
		if err := WriteCSV(filepath.Join(tmpDir, table.file), table.header, table.rows); err != nil {
			return "", err
		}
	}

	if err := os.RemoveAll(starDir); err != nil {
		return "", fmt.Errorf("clear previous star dir: %w", err)
	}
	if err := os.Rename(tmpDir, starDir); err != nil {
		return "", fmt.Errorf("move star dir into place: %w", err)
	}

	s.logger.Info("star schema written", "dir", starDir,
		"fact_forecast_hourly", len(hourly), "fact_forecast_daily", len(daily),
		"dim_date", len(dimDates), "dim_location", 1)
	return starDir, nil
}

// Column layouts. The star headers are the exact contract consumed by the BI
// tool; the processed hourly table keeps the wider layout with run and
// location descriptor columns.

var (
	processedHourlyHeader = []string{
		"run_date", "timestamp_utc", "location_id", "precip_prob", "precip_mm",
		"temp_c", "wind_kph", "latitude", "longitude", "timezone", "date_id",
	}
	factHourlyHeader  = []string{"timestamp_utc", "precip_prob", "precip_mm", "temp_c", "wind_kph", "location_id", "date_id"}
	factDailyHeader   = []string{"date", "precip_mm_total", "precip_prob_max", "temp_c_mean", "wind_kph_mean"}
	dimDateHeader     = []string{"date_id", "date", "year", "month", "day", "day_of_week"}
	dimLocationHeader = []string{"location_id", "city", "latitude", "longitude", "timezone"}
)

// sortedByTimestamp returns a copy ordered by ascending timestamp so output
// row order is deterministic regardless of input order. The caller's slice
// is never reordered in place.
func sortedByTimestamp(hourly []domain.HourlyRecord) []domain.HourlyRecord {
	out := make([]domain.HourlyRecord, len(hourly))
	copy(out, hourly)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampUTC.Before(out[j].TimestampUTC)
	})
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.TimestampLayout)
}

func processedHourlyRows(runDate time.Time, hourly []domain.HourlyRecord, loc domain.LocationSpec) [][]string {
	date := domain.FormatDate(runDate)
	rows := make([][]string, 0, len(hourly))
	for _, rec := range sortedByTimestamp(hourly) {
		rows = append(rows, []string{
			date,
			formatTimestamp(rec.TimestampUTC),
			rec.LocationID,
			formatFloat(rec.PrecipProb),
			formatFloat(rec.PrecipMM),
			formatFloat(rec.TempC),
			formatFloat(rec.WindKPH),
			formatFloat(loc.Latitude),
			formatFloat(loc.Longitude),
			loc.Timezone,
			rec.DateID,
		})
	}
	return rows
}

func factHourlyRows(hourly []domain.HourlyRecord) [][]string {
	rows := make([][]string, 0, len(hourly))
	for _, rec := range sortedByTimestamp(hourly) {
		rows = append(rows, []string{
			formatTimestamp(rec.TimestampUTC),
			formatFloat(rec.PrecipProb),
			formatFloat(rec.PrecipMM),
			formatFloat(rec.TempC),
			formatFloat(rec.WindKPH),
			rec.LocationID,
			rec.DateID,
		})
	}
	return rows
}

func factDailyRows(daily []domain.DailyAggregate) [][]string {
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{
			d.Date,
			formatFloat(d.PrecipMMTotal),
			formatFloat(d.PrecipProbMax),
			formatFloat(d.TempCMean),
			formatFloat(d.WindKPHMean),
		})
	}
	return rows
}

func dimDateRows(dimDates []domain.DimDate) [][]string {
	rows := make([][]string, 0, len(dimDates))
	for _, d := range dimDates {
		rows = append(rows, []string{
			d.DateID,
			d.Date,
			strconv.Itoa(d.Year),
			strconv.Itoa(d.Month),
			strconv.Itoa(d.Day),
			strconv.Itoa(d.DayOfWeek),
		})
	}
	return rows
}

func dimLocationRows(dimLoc domain.DimLocation) [][]string {
	return [][]string{{
		dimLoc.LocationID,
		dimLoc.City,
		formatFloat(dimLoc.Latitude),
		formatFloat(dimLoc.Longitude),
		dimLoc.Timezone,
	}}
}
