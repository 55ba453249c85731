package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"minutes/internal/config"
	"minutes/internal/deps"
	"minutes/internal/history"
	"minutes/internal/logging"
	"minutes/internal/pipeline"
	"minutes/internal/preflight"
	"minutes/internal/services"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Busy() bool
}

// Store is the slice of the history store the server reads and prunes.
type Store interface {
	Get(ctx context.Context, id string) (*history.Job, error)
	List(ctx context.Context, limit int) ([]*history.Job, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// StatusFunc reports dependency and preflight state for /api/status.
type StatusFunc func(ctx context.Context) ([]deps.Status, []preflight.Result)

// Option customises a Server.
type Option func(*Server)

// WithStore enables the history routes.
func WithStore(store Store) Option {
	return func(s *Server) { s.store = store }
}

// WithStatusFunc overrides readiness reporting.
func WithStatusFunc(fn StatusFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.status = fn
		}
	}
}

// Server is the HTTP front end for the pipeline.
type Server struct {
	cfg    *config.Config
	runner Runner
	store  Store
	status StatusFunc
	logger *slog.Logger

	server   *http.Server
	listener net.Listener
}

// New builds a Server. runner should be created with pipeline.WithFailFast.
func New(cfg *config.Config, runner Runner, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
	s.status = func(ctx context.Context) ([]deps.Status, []preflight.Result) {
		return preflight.CheckSystemDeps(ctx, cfg), preflight.RunAll(ctx, cfg, false)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.authMiddleware(s.handleUpload))
	mux.HandleFunc("GET /api/jobs", s.authMiddleware(s.handleList))
	mux.HandleFunc("GET /api/jobs/{id}", s.authMiddleware(s.handleGet))
	mux.HandleFunc("DELETE /api/jobs/{id}", s.authMiddleware(s.handleRemove))
	mux.HandleFunc("GET /api/jobs/{id}/export.csv", s.authMiddleware(s.handleExportCSV))
	mux.HandleFunc("GET /api/jobs/{id}/export", s.authMiddleware(s.handleExport))
	mux.HandleFunc("GET /api/status", s.authMiddleware(s.handleStatus))
	return s.withRequestID(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.cfg.Server.APIToken != ""),
		logging.Bool("history", s.store != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound listener address once serving.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, stage string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Stage: stage})
}
