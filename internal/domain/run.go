package domain

import "time"

// Stage names in execution order.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageAggregate = "aggregate"
	StageValidate  = "validate"
	StageWriteStar = "write_star"
	StageReport    = "report"
)

// FindingCounts tallies findings by severity for the run record.
type FindingCounts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// RunRecord summarizes one pipeline run: inputs, verdict, and where the
// artifacts landed. One record per run_date; re-running a date overwrites
// that date's record and never another's.
type RunRecord struct {
	RunID         string            `json:"run_id"`
	RunDate       string            `json:"run_date"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	Status        RunStatus         `json:"status"`
	Error         string            `json:"error,omitempty"`
	StageStatuses map[string]string `json:"stage_statuses"`
	ArtifactPaths map[string]string `json:"artifact_paths"`
	FindingCounts FindingCounts     `json:"finding_counts"`
}
