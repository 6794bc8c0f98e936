// Package report persists the run-facing artifacts: the validation report,
// the flat exceptions table, the run record, and a human-readable summary.
package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
	"github.com/couchcryptid/forecast-mart-etl/internal/storage"
)

var exceptionsHeader = []string{"run_date", "check_id", "severity", "row_ref", "message"}

// Reporter formats and persists run outcomes. Pure aggregation and
// formatting; it never inspects the data beyond what it is handed.
type Reporter struct {
	dataDir    string
	reportsDir string
	logger     *slog.Logger
}

// New creates a Reporter writing under the configured reports root.
func New(dataDir, reportsDir string, logger *slog.Logger) *Reporter {
	return &Reporter{dataDir: dataDir, reportsDir: reportsDir, logger: logger}
}

func (r *Reporter) paths(runDate time.Time) storage.Paths {
	return storage.NewPaths(r.dataDir, r.reportsDir, runDate)
}

// WriteValidation persists the validation report JSON and the exceptions CSV
// (one row per finding). Returns both artifact paths.
func (r *Reporter) WriteValidation(runDate time.Time, report domain.ValidationReport) (string, string, error) {
	p := r.paths(runDate)

	if err := storage.WriteJSON(p.ValidationJSON, report); err != nil {
		return "", "", err
	}

	rows := make([][]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		rows = append(rows, []string{
			report.RunDate,
			f.CheckID,
			string(f.Severity),
			f.RowRef,
			f.Message,
		})
	}
	if err := storage.WriteCSV(p.ExceptionsCSV, exceptionsHeader, rows); err != nil {
		return "", "", err
	}

	r.logger.Info("validation artifacts written",
		"status", report.Status, "errors", report.Errors, "warnings", report.Warnings)
	return p.ValidationJSON, p.ExceptionsCSV, nil
}

// WriteRunRecord persists the run record JSON for the record's run date.
// Records are keyed by date, so history across dates is append-only.
func (r *Reporter) WriteRunRecord(rec domain.RunRecord) (string, error) {
	runDate, err := domain.ParseRunDate(rec.RunDate)
	if err != nil {
		return "", fmt.Errorf("run record has invalid run_date %q: %w", rec.RunDate, err)
	}
	path := r.paths(runDate).RunJSON
	if err := storage.WriteJSON(path, rec); err != nil {
		return "", err
	}
	r.logger.Info("run record written", "path", path, "status", rec.Status)
	return path, nil
}

// WriteRunReport renders a short markdown summary of the run next to the run
// record, for operators who want headline numbers without opening the JSON.
func (r *Reporter) WriteRunReport(rec domain.RunRecord, report domain.ValidationReport, hourly []domain.HourlyRecord) (string, error) {
	runDate, err := domain.ParseRunDate(rec.RunDate)
	if err != nil {
		return "", fmt.Errorf("run record has invalid run_date %q: %w", rec.RunDate, err)
	}
	p := r.paths(runDate)

	var maxProb, totalMM float64
	for i, h := range hourly {
		if i == 0 || h.PrecipProb > maxProb {
			maxProb = h.PrecipProb
		}
		totalMM += h.PrecipMM
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run Report %s\n\n", rec.RunDate)
	fmt.Fprintf(&b, "- status: %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Fprintf(&b, "- error: %s\n", rec.Error)
	}
	fmt.Fprintf(&b, "- hourly_rows: %d\n", len(hourly))
	fmt.Fprintf(&b, "- max_precip_prob: %g\n", maxProb)
	fmt.Fprintf(&b, "- total_precip_mm: %g\n", totalMM)
	fmt.Fprintf(&b, "- findings: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	b.WriteString("\nArtifacts:\n")
	for _, line := range []struct{ name, path string }{
		{"star", p.StarDir},
		{"validation", p.ValidationJSON},
		{"exceptions", p.ExceptionsCSV},
		{"run_record", p.RunJSON},
	} {
		fmt.Fprintf(&b, "- %s: %s\n", line.name, line.path)
	}

	if err := storage.WriteText(p.RunReportMD, b.String()); err != nil {
		return "", err
	}
	return p.RunReportMD, nil
}
