package storage

import (
	"path/filepath"
	"time"

	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
)

// Star schema file names, fixed by the BI-side contract.
const (
	FactHourlyFile  = "fact_forecast_hourly.csv"
	FactDailyFile   = "fact_forecast_daily.csv"
	DimDateFile     = "dim_date.csv"
	DimLocationFile = "dim_location.csv"
)

// Paths resolves every artifact location for one run date. All artifacts are
// keyed by the date, so re-running a date overwrites only that date's files.
type Paths struct {
	RawJSON string

	ProcessedHourly  string
	ProcessedDimDate string
	ProcessedDimLoc  string
	ProcessedSummary string

	StarDir string

	ValidationJSON string
	ExceptionsCSV  string
	RunJSON        string
	RunReportMD    string
}

// NewPaths computes the artifact layout for a run date under the two output
// roots.
func NewPaths(dataDir, reportsDir string, runDate time.Time) Paths {
	d := domain.FormatDate(runDate)
	return Paths{
		RawJSON: filepath.Join(dataDir, "raw", "forecast_raw_"+d+".json"),

		ProcessedHourly:  filepath.Join(dataDir, "processed", "forecast_hourly_"+d+".csv"),
		ProcessedDimDate: filepath.Join(dataDir, "processed", "dim_date_"+d+".csv"),
		ProcessedDimLoc:  filepath.Join(dataDir, "processed", "dim_location_"+d+".csv"),
		ProcessedSummary: filepath.Join(dataDir, "processed", "forecast_summary_"+d+".csv"),

		StarDir: filepath.Join(dataDir, "star", d),

		ValidationJSON: filepath.Join(reportsDir, "validation", "validation_"+d+".json"),
		ExceptionsCSV:  filepath.Join(reportsDir, "exceptions", "exceptions_"+d+".csv"),
		RunJSON:        filepath.Join(reportsDir, "runs", "run_"+d+".json"),
		RunReportMD:    filepath.Join(reportsDir, "runs", "run_report_"+d+".md"),
	}
}
