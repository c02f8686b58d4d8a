package database

import (
	"time"

	"github.com/tkilaker/newsminer/internal/models"
)

// RunStatus is the lifecycle state of an archived run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one processed job
type Run struct {
	ID             string           `json:"id"`
	JobID          string           `json:"job_id"`
	Job            models.SearchJob `json:"job"`
	Status         RunStatus        `json:"status"`
	FailureKind    string           `json:"failure_kind,omitempty"`
	FailureMessage string           `json:"failure_message,omitempty"`
	RecordCount    int              `json:"record_count"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// RunOutcome is what FinishRun writes back
type RunOutcome struct {
	Status         RunStatus
	FailureKind    string
	FailureMessage string
	RecordCount    int
}

// Record is an archived article record
type Record struct {
	ID    int64  `json:"id"`
	RunID string `json:"run_id"`
	models.ArticleRecord
	CreatedAt time.Time `json:"created_at"`
}
