package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"minutes/internal/config"
	"minutes/internal/export"
	"minutes/internal/fileutil"
	"minutes/internal/history"
	"minutes/internal/logging"
	"minutes/internal/pipeline"
	"minutes/internal/services"
	"minutes/internal/turns"
)

const (
	uploadField      = "video"
	multipartSlack   = 1 << 20
	defaultListLimit = 50
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.runner.Busy() {
		s.writeError(w, http.StatusConflict, services.UserMessage(services.ErrBusy), "busy")
		return
	}
	limit := s.cfg.MaxUploadBytes()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart/form-data upload", "")
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "missing \""+uploadField+"\" file field", "")
			return
		}
		if err != nil {
			s.writeUploadError(w, err)
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		s.processUpload(w, r, part, limit)
		return
	}
}

func (s *Server) processUpload(w http.ResponseWriter, r *http.Request, part *multipart.Part, limit int64) {
	defer part.Close()
	ctx := r.Context()
	logger := logging.WithContext(ctx, s.logger)

	name := fileutil.SanitizeFileName(part.FileName(), "upload.mp4")
	if !s.cfg.ExtensionAllowed(name) {
		s.writeError(w, http.StatusUnsupportedMediaType, "unsupported file type: "+name, "")
		return
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	dest := filepath.Join(s.cfg.Paths.WorkDir, "upload-"+uuid.NewString()+filepath.Ext(name))
	digest, size, err := fileutil.SaveStream(part, dest, limit)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	defer func() {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove upload", logging.String("path", dest), logging.Error(err))
		}
	}()
	logger.Info("upload received",
		logging.String("source", name),
		logging.Int64("size_bytes", size),
	)

	result, err := s.runner.Run(ctx, pipeline.Request{
		SourcePath:  dest,
		SourceName:  name,
		ContentHash: digest,
		SizeBytes:   size,
	})
	if err != nil {
		s.writeRunError(ctx, w, err)
		return
	}

	views := make([]TimingView, 0, len(result.Timings))
	for _, t := range result.Timings {
		views = append(views, TimingView{Stage: t.Stage, DurationMS: t.Duration.Milliseconds()})
	}
	s.writeJSON(w, http.StatusOK, JobResponse{
		JobID:      result.JobID,
		SourceName: result.SourceName,
		Transcript: result.Transcript,
		Sentences:  result.Sentences,
		Speakers:   turns.Speakers(result.Sentences),
		Timings:    views,
	})
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.Is(err, fileutil.ErrTooLarge) || errors.As(err, &maxErr) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds server.max_upload_mb", "")
		return
	}
	s.writeError(w, http.StatusBadRequest, "upload failed: "+err.Error(), "")
}

func (s *Server) writeRunError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.WithContext(ctx, s.logger)
	switch {
	case errors.Is(err, services.ErrBusy):
		s.writeError(w, http.StatusConflict, services.UserMessage(err), "busy")
	case errors.Is(err, context.Canceled):
		logger.Info("client went away during run")
	case errors.Is(err, services.ErrConfiguration):
		logging.ErrorWithContext(logger, "run misconfigured", "run_failure", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error(), services.Kind(err))
	case services.Kind(err) == "internal":
		logging.ErrorWithContext(logger, "run failed", "run_failure", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	default:
		s.writeError(w, http.StatusUnprocessableEntity, services.UserMessage(err), services.Kind(err))
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled", "")
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = parsed
	}
	jobs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	out := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, summarize(job))
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: out})
}

// lookup resolves {id} and writes the error response when it fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*history.Job, bool) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled", "")
		return nil, false
	}
	job, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found", "")
		return nil, false
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return nil, false
	}
	return job, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, detail(job))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled", "")
		return
	}
	removed, err := s.store.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export.CSV)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	s.serveExport(w, r, format)
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, format export.Format) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !job.Succeeded() {
		s.writeError(w, http.StatusConflict, "job failed; nothing to export", job.FailedStage)
		return
	}
	name := export.FileName(s.cfg.Export.FileName, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if err := export.Write(w, format, export.FromJob(job)); err != nil {
		logging.WithContext(r.Context(), s.logger).Warn("export write failed", logging.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	dependencies, checks := s.status(r.Context())
	ready := true
	for _, d := range dependencies {
		if !d.Ready() {
			ready = false
		}
	}
	for _, c := range checks {
		if !c.Passed {
			ready = false
		}
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Busy:           s.runner.Busy(),
		Backend:        backendName(s.cfg),
		HistoryEnabled: s.store != nil,
		Ready:          ready,
		Dependencies:   dependencies,
		Checks:         checks,
	})
}

func backendName(cfg *config.Config) string {
	if cfg.Transcription.Backend == config.BackendOpenAI {
		return cfg.Transcription.Backend + "/" + cfg.Transcription.OpenAIModel
	}
	return cfg.Transcription.Backend + "/" + cfg.Transcription.Model
}
