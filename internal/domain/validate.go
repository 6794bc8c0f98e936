package domain

import (
	"fmt"
	"sort"
	"time"
)

// Severity classifies a validation finding. ERROR findings force run status
// FAIL; WARNING findings are recorded but never fail a run.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// RunStatus is the overall verdict for one run.
type RunStatus string

const (
	StatusPass RunStatus = "PASS"
	StatusFail RunStatus = "FAIL"
)

// Finding is one data-quality violation detected by a check.
type Finding struct {
	CheckID  string   `json:"check_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	RowRef   string   `json:"row_ref,omitempty"`
}

// CheckResult summarizes one check's outcome in the validation report.
type CheckResult struct {
	CheckID  string   `json:"check_id"`
	Severity Severity `json:"severity"`
	Passed   bool     `json:"passed"`
	Findings int      `json:"findings"`
}

// ValidationReport is the full outcome of validating one run's tables.
type ValidationReport struct {
	RunDate  string        `json:"run_date"`
	Status   RunStatus     `json:"status"`
	RowCount int           `json:"row_count"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Checks   []CheckResult `json:"checks"`
	Findings []Finding     `json:"findings"`
}

// ValidationInput carries everything the checks read. Validation never
// consults a clock or the filesystem, so identical inputs always produce
// identical reports.
type ValidationInput struct {
	RunDate     time.Time
	FetchedAt   time.Time
	Hourly      []HourlyRecord
	Daily       []DailyAggregate
	DimDates    []DimDate
	DimLocation DimLocation

	// RawHourlyCount is the entry count observed in the raw payload,
	// for reconciliation against the normalized row count.
	RawHourlyCount int

	HorizonHours        int
	ExpectedHoursPerDay int
	FreshnessTolerance  time.Duration
}

// Plausible surface temperature bounds in degrees Celsius. Earth's recorded
// extremes are roughly -89 and +57.
const (
	tempPlausibleMin = -60.0
	tempPlausibleMax = 60.0
)

type check struct {
	id       string
	severity Severity
	fn       func(in ValidationInput) []Finding
}

// checks is the fixed, ordered list the validator runs. Each check is
// independent: all of them run regardless of earlier outcomes.
var checks = []check{
	{id: "non_empty", severity: SeverityError, fn: checkNonEmpty},
	{id: "unique_key", severity: SeverityError, fn: checkUniqueKey},
	{id: "timestamp_parseable", severity: SeverityError, fn: checkTimestampParseable},
	{id: "timestamp_within_horizon", severity: SeverityError, fn: checkTimestampWithinHorizon},
	{id: "referential_integrity_date", severity: SeverityError, fn: checkDateIntegrity},
	{id: "referential_integrity_location", severity: SeverityError, fn: checkLocationIntegrity},
	{id: "daily_rollup_alignment", severity: SeverityError, fn: checkDailyAlignment},
	{id: "precip_prob_range", severity: SeverityError, fn: checkPrecipProbRange},
	{id: "precip_mm_nonnegative", severity: SeverityError, fn: checkPrecipNonNegative},
	{id: "temp_plausible", severity: SeverityError, fn: checkTempPlausible},
	{id: "reconciliation_count", severity: SeverityError, fn: checkReconciliationCount},
	{id: "completeness_hours", severity: SeverityWarning, fn: checkCompletenessHours},
	{id: "freshness", severity: SeverityWarning, fn: checkFreshness},
}

// Validate runs the fixed check list over one run's tables and produces the
// report. Status is FAIL exactly when at least one ERROR finding exists.
func Validate(in ValidationInput) ValidationReport {
	report := ValidationReport{
		RunDate:  FormatDate(in.RunDate),
		RowCount: len(in.Hourly),
		Checks:   make([]CheckResult, 0, len(checks)),
		Findings: []Finding{},
	}

	for _, c := range checks {
		findings := c.fn(in)
		for i := range findings {
			findings[i].CheckID = c.id
			findings[i].Severity = c.severity
		}
		report.Checks = append(report.Checks, CheckResult{
			CheckID:  c.id,
			Severity: c.severity,
			Passed:   len(findings) == 0,
			Findings: len(findings),
		})
		report.Findings = append(report.Findings, findings...)

		if c.severity == SeverityError {
			report.Errors += len(findings)
		} else {
			report.Warnings += len(findings)
		}
	}

	report.Status = StatusPass
	if report.Errors > 0 {
		report.Status = StatusFail
	}
	return report
}

// sortFindingsByRowRef fixes the order of findings produced from map
// iteration so reports stay byte-identical across runs.
func sortFindingsByRowRef(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].RowRef != findings[j].RowRef {
			return findings[i].RowRef < findings[j].RowRef
		}
		return findings[i].Message < findings[j].Message
	})
}

func hourRef(i int, rec HourlyRecord) string {
	if rec.TimestampUTC.IsZero() {
		return fmt.Sprintf("hour[%d]", i)
	}
	return fmt.Sprintf("hour[%d] %s", i, rec.TimestampUTC.Format(TimestampLayout))
}

func checkNonEmpty(in ValidationInput) []Finding {
	if len(in.Hourly) > 0 {
		return nil
	}
	return []Finding{{Message: "hourly table contains no rows"}}
}

func checkUniqueKey(in ValidationInput) []Finding {
	var findings []Finding
	seen := make(map[string]int, len(in.Hourly))
	for i, rec := range in.Hourly {
		key := rec.TimestampUTC.Format(TimestampLayout) + "|" + rec.LocationID
		if first, dup := seen[key]; dup {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("duplicate (timestamp_utc, location_id) key, first seen at hour[%d]", first),
				RowRef:  hourRef(i, rec),
			})
			continue
		}
		seen[key] = i
	}
	return findings
}

func checkTimestampParseable(in ValidationInput) []Finding {
	var findings []Finding
	for i, rec := range in.Hourly {
		if rec.TimestampUTC.IsZero() {
			findings = append(findings, Finding{
				Message: "hourly entry has a missing or unparseable timestamp",
				RowRef:  hourRef(i, rec),
			})
		}
	}
	return findings
}

// checkTimestampWithinHorizon verifies every parseable timestamp falls in
// [min_ts, min_ts + horizon). Unparseable timestamps are the
// timestamp_parseable check's concern and are skipped here.
func checkTimestampWithinHorizon(in ValidationInput) []Finding {
	var minTS time.Time
	for _, rec := range in.Hourly {
		if rec.TimestampUTC.IsZero() {
			continue
		}
		if minTS.IsZero() || rec.TimestampUTC.Before(minTS) {
			minTS = rec.TimestampUTC
		}
	}
	if minTS.IsZero() {
		return nil
	}

	maxExclusive := minTS.Add(time.Duration(in.HorizonHours) * time.Hour)
	var findings []Finding
	for i, rec := range in.Hourly {
		if rec.TimestampUTC.IsZero() {
			continue
		}
		if !rec.TimestampUTC.Before(maxExclusive) {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("timestamp outside [%s, %s)",
					minTS.Format(TimestampLayout), maxExclusive.Format(TimestampLayout)),
				RowRef: hourRef(i, rec),
			})
		}
	}
	return findings
}

func checkDateIntegrity(in ValidationInput) []Finding {
	known := make(map[string]struct{}, len(in.DimDates))
	for _, d := range in.DimDates {
		known[d.DateID] = struct{}{}
	}

	var findings []Finding
	for i, rec := range in.Hourly {
		if _, ok := known[rec.DateID]; !ok {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("date_id %q has no dim_date row", rec.DateID),
				RowRef:  hourRef(i, rec),
			})
		}
	}
	for _, d := range in.Daily {
		if _, ok := known[d.Date]; !ok {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("daily date %q has no dim_date row", d.Date),
				RowRef:  "date " + d.Date,
			})
		}
	}
	return findings
}

func checkLocationIntegrity(in ValidationInput) []Finding {
	var findings []Finding
	for i, rec := range in.Hourly {
		if rec.LocationID != in.DimLocation.LocationID {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("location_id %q has no dim_location row", rec.LocationID),
				RowRef:  hourRef(i, rec),
			})
		}
	}
	return findings
}

// checkDailyAlignment verifies the daily table partitions exactly the dates
// present in the hourly table: no daily row without hourly rows, no hourly
// date missing its daily row.
func checkDailyAlignment(in ValidationInput) []Finding {
	hourlyDates := make(map[string]struct{}, 4)
	for _, rec := range in.Hourly {
		if rec.DateID != "" {
			hourlyDates[rec.DateID] = struct{}{}
		}
	}
	dailyDates := make(map[string]struct{}, len(in.Daily))

	var findings []Finding
	for _, d := range in.Daily {
		dailyDates[d.Date] = struct{}{}
		if _, ok := hourlyDates[d.Date]; !ok {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("daily row for %q has no contributing hourly rows", d.Date),
				RowRef:  "date " + d.Date,
			})
		}
	}
	for date := range hourlyDates {
		if _, ok := dailyDates[date]; !ok {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("hourly date %q has no daily rollup row", date),
				RowRef:  "date " + date,
			})
		}
	}
	sortFindingsByRowRef(findings)
	return findings
}

func checkPrecipProbRange(in ValidationInput) []Finding {
	var findings []Finding
	for i, rec := range in.Hourly {
		if rec.PrecipProb < 0 || rec.PrecipProb > 100 {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("precip_prob %g outside [0, 100]", rec.PrecipProb),
				RowRef:  hourRef(i, rec),
			})
		}
	}
	return findings
}

func checkPrecipNonNegative(in ValidationInput) []Finding {
	var findings []Finding
	for i, rec := range in.Hourly {
		if rec.PrecipMM < 0 {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("precip_mm %g is negative", rec.PrecipMM),
				RowRef:  hourRef(i, rec),
			})
		}
	}
	return findings
}

func checkTempPlausible(in ValidationInput) []Finding {
	var findings []Finding
	for i, rec := range in.Hourly {
		if rec.TempC < tempPlausibleMin || rec.TempC > tempPlausibleMax {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("temp_c %g outside plausible range [%g, %g]",
					rec.TempC, tempPlausibleMin, tempPlausibleMax),
				RowRef: hourRef(i, rec),
			})
		}
	}
	return findings
}

func checkReconciliationCount(in ValidationInput) []Finding {
	if in.RawHourlyCount == len(in.Hourly) {
		return nil
	}
	return []Finding{{
		Message: fmt.Sprintf("raw payload has %d hourly entries but %d rows were normalized",
			in.RawHourlyCount, len(in.Hourly)),
	}}
}

// checkCompletenessHours warns when a date carries fewer hourly rows than
// expected. Dates at the edge of the forecast horizon are legitimately
// short, which is why this is a warning and not an error.
func checkCompletenessHours(in ValidationInput) []Finding {
	counts := make(map[string]int, 4)
	for _, rec := range in.Hourly {
		if rec.DateID != "" {
			counts[rec.DateID]++
		}
	}

	var findings []Finding
	for _, d := range in.DimDates {
		if n := counts[d.DateID]; n < in.ExpectedHoursPerDay {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("expected %d hourly rows, found %d", in.ExpectedHoursPerDay, n),
				RowRef:  "date " + d.DateID,
			})
		}
	}
	return findings
}

// checkFreshness warns when the run date lies further in the past of the
// fetch time than the configured tolerance, which usually means the run is
// reprocessing a stale date rather than the current forecast.
func checkFreshness(in ValidationInput) []Finding {
	if in.FetchedAt.IsZero() {
		return nil
	}
	age := in.FetchedAt.Sub(in.RunDate)
	if age <= in.FreshnessTolerance {
		return nil
	}
	return []Finding{{
		Message: fmt.Sprintf("run_date %s is %s older than fetch time %s (tolerance %s)",
			FormatDate(in.RunDate), age.Truncate(time.Minute),
			in.FetchedAt.Format(TimestampLayout), in.FreshnessTolerance),
	}}
}
