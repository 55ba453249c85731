package server

import (
	"time"

	"minutes/internal/deps"
	"minutes/internal/history"
	"minutes/internal/preflight"
	"minutes/internal/turns"
)

// JobResponse is returned by a successful upload.
type JobResponse struct {
	JobID      string                  `json:"job_id"`
	SourceName string                  `json:"source_name"`
	Transcript string                  `json:"transcript"`
	Sentences  []turns.LabeledSentence `json:"sentences"`
	Speakers   []string                `json:"speakers"`
	Timings    []TimingView            `json:"timings"`
}

// TimingView is a stage duration in milliseconds.
type TimingView struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// JobSummary is one row of the history listing.
type JobSummary struct {
	JobID       string    `json:"job_id"`
	SourceName  string    `json:"source_name"`
	Status      string    `json:"status"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	Sentences   int       `json:"sentences"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobListResponse wraps the history listing.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobDetail is a stored run with its outputs.
type JobDetail struct {
	JobSummary
	ContentHash string                  `json:"content_hash,omitempty"`
	Backend     string                  `json:"backend,omitempty"`
	Transcript  string                  `json:"transcript"`
	Sentences   []turns.LabeledSentence `json:"sentences"`
	Timings     []TimingView            `json:"timings"`
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Busy           bool               `json:"busy"`
	Backend        string             `json:"backend"`
	HistoryEnabled bool               `json:"history_enabled"`
	Ready          bool               `json:"ready"`
	Dependencies   []deps.Status      `json:"dependencies"`
	Checks         []preflight.Result `json:"checks"`
}

func timingViews(timings []history.StageTiming) []TimingView {
	out := make([]TimingView, 0, len(timings))
	for _, t := range timings {
		out = append(out, TimingView{Stage: t.Stage, DurationMS: t.Duration.Milliseconds()})
	}
	return out
}

func summarize(job *history.Job) JobSummary {
	return JobSummary{
		JobID:       job.ID,
		SourceName:  job.SourceName,
		Status:      string(job.Status),
		FailedStage: job.FailedStage,
		Error:       job.ErrorMessage,
		Sentences:   len(job.Sentences),
		CreatedAt:   job.CreatedAt,
	}
}

func detail(job *history.Job) JobDetail {
	sentences := job.Sentences
	if sentences == nil {
		sentences = []turns.LabeledSentence{}
	}
	return JobDetail{
		JobSummary:  summarize(job),
		ContentHash: job.ContentHash,
		Backend:     job.Backend,
		Transcript:  job.Transcript,
		Sentences:   sentences,
		Timings:     timingViews(job.Timings),
	}
}
