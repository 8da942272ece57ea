package model

import "time"

// RunStatus tracks the lifecycle of a triage run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// FailureStage identifies where in the per-record loop a record was lost.
type FailureStage string

const (
	StageClassify FailureStage = "classify"
	StageUpdate   FailureStage = "update"
)

// RecordFailure describes one record that was skipped during a run. The
// record stays unclassified on the layer and is retried on the next run.
type RecordFailure struct {
	ObjectID int64        `json:"object_id"`
	Stage    FailureStage `json:"stage"`
	Reason   string       `json:"reason"`
}

// Report summarizes one triage run.
type Report struct {
	Processed int             `json:"processed"`
	Flagged   int             `json:"flagged"`
	OK        int             `json:"ok"`
	Skipped   int             `json:"skipped"`
	Failures  []RecordFailure `json:"failures,omitempty"`
}

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Strategy   string     `json:"strategy"`
	Report     *Report    `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
