package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"minutes/internal/config"
	"minutes/internal/fileutil"
	"minutes/internal/history"
	"minutes/internal/logging"
	"minutes/internal/services"
	"minutes/internal/turns"
)

// Stage names as they appear in logs, history and HTTP errors.
const (
	StageValidation    = "validation"
	StageExtraction    = "extraction"
	StageTranscription = "transcription"
	StageDiarization   = "diarization"
	StageLabeling      = "labeling"
)

const lockRetryDelay = 250 * time.Millisecond

// Extractor writes the audio track of source to dest as 16 kHz mono WAV.
type Extractor interface {
	Extract(ctx context.Context, source, dest string) error
}

// Transcriber produces the full transcript of an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, workDir string) (string, error)
	Name() string
}

// Diarizer segments audio into speaker turns.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath, workDir string) ([]turns.Segment, error)
	Name() string
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, job *history.Job) error
}

// Request identifies the video to process.
type Request struct {
	SourcePath string
	// SourceName is the display name; defaults to the base of SourcePath.
	SourceName string
	// ContentHash skips hashing when the caller already computed it.
	ContentHash string
	SizeBytes   int64
}

// Result is the output of a successful run.
type Result struct {
	JobID       string                  `json:"job_id"`
	SourceName  string                  `json:"source_name"`
	ContentHash string                  `json:"content_hash"`
	SizeBytes   int64                   `json:"size_bytes"`
	Backend     string                  `json:"backend"`
	Transcript  string                  `json:"transcript"`
	Segments    []turns.Segment         `json:"segments"`
	Sentences   []turns.LabeledSentence `json:"sentences"`
	Timings     []history.StageTiming   `json:"timings"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithRecorder records every run, successful or not.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithFailFast makes Run return services.ErrBusy instead of waiting when
// another run holds the lock.
func WithFailFast() Option {
	return func(p *Pipeline) { p.failFast = true }
}

// WithIDGenerator overrides job ID generation (for testing).
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(fn func() time.Time) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.now = fn
		}
	}
}

// Pipeline wires the stage collaborators together.
type Pipeline struct {
	cfg         *config.Config
	extractor   Extractor
	transcriber Transcriber
	diarizer    Diarizer
	recorder    Recorder
	logger      *slog.Logger
	labelOpts   turns.Options
	failFast    bool
	newID       func() string
	now         func() time.Time

	mu      sync.Mutex
	lock    *flock.Flock
	running atomic.Bool
}

// New builds a Pipeline. Labeling options come from cfg.Labeling.
func New(cfg *config.Config, extractor Extractor, transcriber Transcriber, diarizer Diarizer, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		extractor:   extractor,
		transcriber: transcriber,
		diarizer:    diarizer,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		labelOpts:   turns.Options{RollingCursor: cfg.Labeling.RollingCursor},
		newID:       uuid.NewString,
		now:         time.Now,
		lock:        flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Busy reports whether a run is in progress in this process.
func (p *Pipeline) Busy() bool {
	return p.running.Load()
}

// Run processes one video end to end.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, StageValidation, "run", "source path required", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, StageValidation, "run", "source unreadable", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, StageValidation, "run", fmt.Sprintf("%s is a directory", source), nil)
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	job := &run{
		id:         p.newID(),
		sourceName: req.SourceName,
		hash:       req.ContentHash,
		size:       req.SizeBytes,
		startedAt:  p.now(),
	}
	if job.sourceName == "" {
		job.sourceName = filepath.Base(source)
	}
	ctx = services.WithJobID(ctx, job.id)
	ctx = services.WithSource(ctx, job.sourceName)
	logger := logging.WithContext(ctx, p.logger)

	result, runErr := p.execute(ctx, logger, source, job)
	p.record(ctx, logger, job, result, runErr)
	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

type run struct {
	id          string
	sourceName  string
	hash        string
	size        int64
	backend     string
	startedAt   time.Time
	timings     []history.StageTiming
	failedStage string
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, source string, job *run) (*Result, error) {
	if err := p.cfg.EnsureDirectories(); err != nil {
		job.failedStage = StageValidation
		return nil, services.Wrap(services.ErrConfiguration, StageValidation, "workspace", "ensure directories", err)
	}
	workspace, err := os.MkdirTemp(p.cfg.Paths.WorkDir, "job-"+shortID(job.id)+"-")
	if err != nil {
		job.failedStage = StageValidation
		return nil, services.Wrap(services.ErrConfiguration, StageValidation, "workspace", "create workspace", err)
	}
	defer func() {
		if cleanupErr := p.cleanup(workspace); cleanupErr != nil {
			logging.WarnWithContext(logger, "workspace cleanup incomplete", "workspace_cleanup",
				logging.String("workspace", workspace),
				logging.Error(cleanupErr),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
			)
		}
	}()

	if job.hash == "" || job.size == 0 {
		digest, size, hashErr := fileutil.HashFile(source)
		if hashErr != nil {
			job.failedStage = StageValidation
			return nil, services.Wrap(services.ErrValidation, StageValidation, "hash", "read source", hashErr)
		}
		job.hash, job.size = digest, size
	}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Bytes("size", job.size),
		logging.String("content_hash", job.hash),
	)

	audioPath := filepath.Join(workspace, "audio.wav")
	if err := p.stage(ctx, job, StageExtraction, func(ctx context.Context) error {
		return p.extractor.Extract(ctx, source, audioPath)
	}); err != nil {
		return nil, err
	}

	var transcript string
	job.backend = p.transcriber.Name()
	if err := p.stage(ctx, job, StageTranscription, func(ctx context.Context) error {
		var err error
		transcript, err = p.transcriber.Transcribe(ctx, audioPath, workspace)
		return err
	}); err != nil {
		return nil, err
	}

	var segments []turns.Segment
	if err := p.stage(ctx, job, StageDiarization, func(ctx context.Context) error {
		var err error
		segments, err = p.diarizer.Diarize(ctx, audioPath, workspace)
		return err
	}); err != nil {
		return nil, err
	}

	var sentences []turns.LabeledSentence
	if err := p.stage(ctx, job, StageLabeling, func(context.Context) error {
		var err error
		sentences, err = turns.LabelWithOptions(transcript, segments, p.labelOpts)
		if errors.Is(err, turns.ErrEmptyInput) {
			return services.Wrap(services.ErrDiarization, StageLabeling, "label", "no speaker segments detected", err)
		}
		return err
	}); err != nil {
		return nil, err
	}

	result := &Result{
		JobID:       job.id,
		SourceName:  job.sourceName,
		ContentHash: job.hash,
		SizeBytes:   job.size,
		Backend:     job.backend,
		Transcript:  transcript,
		Segments:    segments,
		Sentences:   sentences,
		Timings:     job.timings,
		StartedAt:   job.startedAt,
		CompletedAt: p.now(),
	}
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("sentences", len(sentences)),
		logging.Int("speakers", len(turns.Speakers(sentences))),
		logging.Duration("elapsed", result.CompletedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// stage runs fn with stage context, logging and timing.
func (p *Pipeline) stage(ctx context.Context, job *run, name string, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, p.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := p.now()
	err := fn(stageCtx)
	elapsed := p.now().Sub(started)
	job.timings = append(job.timings, history.StageTiming{Stage: name, Duration: elapsed})

	if err != nil {
		job.failedStage = name
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Duration("duration", elapsed),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		job.failedStage = name
		return fmt.Errorf("%s: %w", name, ctxErr)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", elapsed),
	)
	return nil
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, job *run, result *Result, runErr error) {
	if p.recorder == nil {
		return
	}
	completed := p.now()
	entry := &history.Job{
		ID:          job.id,
		SourceName:  job.sourceName,
		ContentHash: job.hash,
		SizeBytes:   job.size,
		Backend:     job.backend,
		Timings:     job.timings,
		CreatedAt:   job.startedAt,
		CompletedAt: &completed,
	}
	if runErr != nil {
		entry.Status = history.StatusFailed
		entry.FailedStage = job.failedStage
		entry.ErrorMessage = services.UserMessage(runErr)
	} else {
		entry.Status = history.StatusSucceeded
		entry.Transcript = result.Transcript
		entry.Sentences = result.Sentences
		entry.SegmentCount = len(result.Segments)
	}
	// Record even when the run was cancelled.
	if err := p.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_write",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run not listed in history"),
		)
	}
}

// acquire takes the process mutex and the cross-process file lock.
func (p *Pipeline) acquire(ctx context.Context) (func(), error) {
	if p.failFast {
		if !p.mu.TryLock() {
			return nil, services.Wrap(services.ErrBusy, StageValidation, "lock", "run in progress", nil)
		}
	} else {
		p.mu.Lock()
	}

	if err := os.MkdirAll(filepath.Dir(p.cfg.LockPath()), 0o755); err != nil {
		p.mu.Unlock()
		return nil, services.Wrap(services.ErrConfiguration, StageValidation, "lock", "ensure state dir", err)
	}
	var (
		locked bool
		err    error
	)
	if p.failFast {
		locked, err = p.lock.TryLock()
	} else {
		locked, err = p.lock.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		p.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrConfiguration, StageValidation, "lock", p.cfg.LockPath(), err)
		}
		if err != nil {
			return nil, err
		}
		return nil, services.Wrap(services.ErrBusy, StageValidation, "lock", "another process holds "+p.cfg.LockPath(), nil)
	}

	p.running.Store(true)
	return func() {
		p.running.Store(false)
		if err := p.lock.Unlock(); err != nil {
			p.logger.Warn("failed to release run lock", logging.Error(err))
		}
		p.mu.Unlock()
	}, nil
}

func (p *Pipeline) cleanup(workspace string) error {
	var result *multierror.Error
	entries, err := os.ReadDir(workspace)
	if err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, fmt.Errorf("read workspace: %w", err))
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(workspace, entry.Name())); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", entry.Name(), err))
		}
	}
	if err := os.Remove(workspace); err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, fmt.Errorf("remove workspace: %w", err))
	}
	return result.ErrorOrNil()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
