package history

import (
	"time"

	"minutes/internal/turns"
)

// Status is the terminal outcome of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Job is one recorded run.
type Job struct {
	ID           string
	SourceName   string
	ContentHash  string
	SizeBytes    int64
	Status       Status
	FailedStage  string
	ErrorMessage string
	Backend      string
	Transcript   string
	Sentences    []turns.LabeledSentence
	SegmentCount int
	Timings      []StageTiming
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Succeeded reports whether the run produced output.
func (j *Job) Succeeded() bool {
	return j != nil && j.Status == StatusSucceeded
}

// Elapsed returns the wall time between creation and completion.
func (j *Job) Elapsed() time.Duration {
	if j == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.CreatedAt)
}
