// Package pipeline sequences one forecast ETL run: fetch, normalize,
// aggregate, validate, star-schema write, report.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/forecast-mart-etl/internal/config"
	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
	"github.com/couchcryptid/forecast-mart-etl/internal/observability"
)

// ForecastFetcher retrieves the raw hourly forecast for one location and
// run date.
type ForecastFetcher interface {
	Fetch(ctx context.Context, loc domain.LocationSpec, runDate time.Time) (domain.RawForecast, error)
}

// ArtifactStore persists the data-side artifacts of a run.
type ArtifactStore interface {
	SaveRaw(raw domain.RawForecast) (string, error)
	SaveProcessed(runDate time.Time, hourly []domain.HourlyRecord, daily []domain.DailyAggregate,
		dimDates []domain.DimDate, dimLoc domain.DimLocation, loc domain.LocationSpec) (map[string]string, error)
	WriteStar(runDate time.Time, hourly []domain.HourlyRecord, daily []domain.DailyAggregate,
		dimDates []domain.DimDate, dimLoc domain.DimLocation) (string, error)
}

// RunReporter persists the report-side artifacts of a run.
type RunReporter interface {
	WriteValidation(runDate time.Time, report domain.ValidationReport) (validationPath, exceptionsPath string, err error)
	WriteRunRecord(rec domain.RunRecord) (string, error)
	WriteRunReport(rec domain.RunRecord, report domain.ValidationReport, hourly []domain.HourlyRecord) (string, error)
}

// RunPublisher pushes the completed run record to an external sink.
type RunPublisher interface {
	PublishRunRecord(ctx context.Context, rec domain.RunRecord) error
}

// Pipeline orchestrates the stage sequence for a single run date. Strictly
// sequential; no stage is skipped while its predecessors succeed.
type Pipeline struct {
	fetcher   ForecastFetcher
	store     ArtifactStore
	reporter  RunReporter
	publisher RunPublisher // nil disables publishing
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
}

// New creates a Pipeline with the given stages and observability. Pass a nil
// publisher to disable run-record publishing.
func New(f ForecastFetcher, s ArtifactStore, r RunReporter, p RunPublisher,
	cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		store:     s,
		reporter:  r,
		publisher: p,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source, for deterministic run timestamps in tests.
// Pass nil to reset to the real clock.
func (p *Pipeline) SetClock(clock clockwork.Clock) {
	if clock == nil {
		p.clock = clockwork.NewRealClock()
		return
	}
	p.clock = clock
}

// run tracks the mutable state of one invocation.
type run struct {
	record domain.RunRecord
}

func (p *Pipeline) newRun(runDate time.Time) *run {
	return &run{record: domain.RunRecord{
		RunID:         uuid.NewString(),
		RunDate:       domain.FormatDate(runDate),
		StartedAt:     p.clock.Now().UTC(),
		Status:        domain.StatusFail,
		StageStatuses: make(map[string]string, 6),
		ArtifactPaths: make(map[string]string, 8),
	}}
}

// Run executes the full stage sequence for runDate and returns the run
// record. A non-nil error means a fatal stage failure; a best-effort run
// record is still written in that case. Validation ERROR findings are not
// fatal: every downstream write still happens and the returned record simply
// carries status FAIL.
func (p *Pipeline) Run(ctx context.Context, runDate time.Time) (domain.RunRecord, error) {
	p.metrics.RunInFlight.Set(1)
	defer p.metrics.RunInFlight.Set(0)

	r := p.newRun(runDate)
	p.logger.Info("run started", "run_date", r.record.RunDate, "run_id", r.record.RunID)

	// FETCH
	var raw domain.RawForecast
	err := p.stage(r, domain.StageFetch, func() error {
		var err error
		if raw, err = p.fetcher.Fetch(ctx, p.cfg.Location, runDate); err != nil {
			return err
		}
		path, err := p.store.SaveRaw(raw)
		if err != nil {
			return err
		}
		r.record.ArtifactPaths["raw"] = path
		return nil
	})
	if err != nil {
		return p.abort(ctx, r, err)
	}

	// NORMALIZE
	var (
		hourly   []domain.HourlyRecord
		dimDates []domain.DimDate
		dimLoc   domain.DimLocation
	)
	err = p.stage(r, domain.StageNormalize, func() error {
		var err error
		hourly, dimDates, dimLoc, err = domain.Normalize(raw, p.cfg.Location)
		return err
	})
	if err != nil {
		return p.abort(ctx, r, err)
	}
	p.metrics.RowsProcessed.Add(float64(len(hourly)))

	// AGGREGATE
	var daily []domain.DailyAggregate
	err = p.stage(r, domain.StageAggregate, func() error {
		daily = domain.Aggregate(hourly)
		paths, err := p.store.SaveProcessed(runDate, hourly, daily, dimDates, dimLoc, p.cfg.Location)
		if err != nil {
			return err
		}
		for name, path := range paths {
			r.record.ArtifactPaths[name] = path
		}
		return nil
	})
	if err != nil {
		return p.abort(ctx, r, err)
	}

	// VALIDATE
	var report domain.ValidationReport
	err = p.stage(r, domain.StageValidate, func() error {
		rawCount, err := domain.RawHourlyCount(raw.Payload)
		if err != nil {
			return err
		}
		report = domain.Validate(domain.ValidationInput{
			RunDate:             runDate,
			FetchedAt:           raw.FetchedAt,
			Hourly:              hourly,
			Daily:               daily,
			DimDates:            dimDates,
			DimLocation:         dimLoc,
			RawHourlyCount:      rawCount,
			HorizonHours:        p.cfg.HorizonHours,
			ExpectedHoursPerDay: p.cfg.ExpectedHoursPerDay,
			FreshnessTolerance:  p.cfg.FreshnessTolerance,
		})
		validationPath, exceptionsPath, err := p.reporter.WriteValidation(runDate, report)
		if err != nil {
			return err
		}
		r.record.ArtifactPaths["validation"] = validationPath
		r.record.ArtifactPaths["exceptions"] = exceptionsPath
		return nil
	})
	if err != nil {
		return p.abort(ctx, r, err)
	}
	r.record.FindingCounts = domain.FindingCounts{Errors: report.Errors, Warnings: report.Warnings}
	p.metrics.FindingsTotal.WithLabelValues(string(domain.SeverityError)).Add(float64(report.Errors))
	p.metrics.FindingsTotal.WithLabelValues(string(domain.SeverityWarning)).Add(float64(report.Warnings))

	// WRITE_STAR runs even when validation failed so operators can inspect
	// the offending tables.
	err = p.stage(r, domain.StageWriteStar, func() error {
		starDir, err := p.store.WriteStar(runDate, hourly, daily, dimDates, dimLoc)
		if err != nil {
			return err
		}
		r.record.ArtifactPaths["star"] = starDir
		return nil
	})
	if err != nil {
		return p.abort(ctx, r, err)
	}

	// REPORT
	r.record.Status = report.Status
	r.record.FinishedAt = p.clock.Now().UTC()
	err = p.stage(r, domain.StageReport, func() error {
		reportPath, err := p.reporter.WriteRunReport(r.record, report, hourly)
		if err != nil {
			return err
		}
		r.record.ArtifactPaths["run_report"] = reportPath
		path, err := p.reporter.WriteRunRecord(r.record)
		if err != nil {
			return err
		}
		r.record.ArtifactPaths["run_record"] = path
		return nil
	})
	if err != nil {
		return p.abort(ctx, r, err)
	}

	p.publish(ctx, r.record)
	p.metrics.RunsTotal.WithLabelValues(string(r.record.Status)).Inc()
	p.logger.Info("run finished", "run_date", r.record.RunDate, "status", r.record.Status,
		"errors", report.Errors, "warnings", report.Warnings)
	return r.record, nil
}

// stage runs one stage, recording its status and duration.
func (p *Pipeline) stage(r *run, name string, fn func() error) error {
	p.logger.Info("stage started", "stage", name, "run_date", r.record.RunDate)
	start := p.clock.Now()
	err := fn()
	elapsed := p.clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		r.record.StageStatuses[name] = "failed"
		p.logger.Error("stage failed", "stage", name, "run_date", r.record.RunDate, "error", err)
		return err
	}
	r.record.StageStatuses[name] = "success"
	p.logger.Info("stage finished", "stage", name, "run_date", r.record.RunDate, "duration", elapsed)
	return nil
}

// abort finalizes a fatally failed run: it stamps the record, writes it
// best-effort so the failure is inspectable, publishes it, and returns the
// original stage error.
func (p *Pipeline) abort(ctx context.Context, r *run, stageErr error) (domain.RunRecord, error) {
	r.record.Status = domain.StatusFail
	r.record.Error = stageErr.Error()
	r.record.FinishedAt = p.clock.Now().UTC()

	if path, err := p.reporter.WriteRunRecord(r.record); err != nil {
		p.logger.Error("failed to write run record after stage failure", "error", err)
	} else {
		r.record.ArtifactPaths["run_record"] = path
	}

	p.publish(ctx, r.record)
	p.metrics.RunsTotal.WithLabelValues(string(domain.StatusFail)).Inc()
	return r.record, stageErr
}

// publish sends the run record to the configured sink, if any. Publishing is
// best-effort: a delivery failure is logged but never changes the verdict of
// a run whose artifacts are already on disk.
func (p *Pipeline) publish(ctx context.Context, rec domain.RunRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishRunRecord(ctx, rec); err != nil {
		p.logger.Error("run record publish failed", "run_date", rec.RunDate, "error", err)
	}
}
