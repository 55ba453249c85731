package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"minutes/internal/config"
	"minutes/internal/deps"
	"minutes/internal/history"
	"minutes/internal/pipeline"
	"minutes/internal/preflight"
	"minutes/internal/server"
	"minutes/internal/services"
	"minutes/internal/testsupport"
	"minutes/internal/turns"
)

type fakeRunner struct {
	mu      sync.Mutex
	busy    bool
	err     error
	got     pipeline.Request
	content []byte
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = req
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return nil, err
	}
	f.content = data
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{
		JobID:      "job-1",
		SourceName: req.SourceName,
		Transcript: "Hello world. Goodbye now.",
		Sentences: []turns.LabeledSentence{
			{Speaker: "B", Text: "Hello world", StartTime: "00:00:03"},
			{Speaker: "B", Text: "Goodbye now", StartTime: "00:00:03"},
		},
		Timings: []history.StageTiming{{Stage: "extraction", Duration: 1500 * time.Millisecond}},
	}, nil
}

func (f *fakeRunner) Busy() bool { return f.busy }

func noStatus(context.Context) ([]deps.Status, []preflight.Result) {
	return []deps.Status{{Name: "FFmpeg", Available: true}}, []preflight.Result{{Name: "HF", Passed: true}}
}

func newServer(t *testing.T, cfg *config.Config, runner server.Runner, opts ...server.Option) *httptest.Server {
	t.Helper()
	opts = append([]server.Option{server.WithStatusFunc(noStatus)}, opts...)
	srv := httptest.NewServer(server.New(cfg, runner, nil, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func uploadBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "ignored"); err != nil {
		t.Fatal(err)
	}
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, srv *httptest.Server, field, filename string, content []byte) *http.Response {
	t.Helper()
	body, contentType := uploadBody(t, field, filename, content)
	resp, err := http.Post(srv.URL+"/api/jobs", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestUploadSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{}
	srv := newServer(t, cfg, runner)

	resp := postUpload(t, srv, "video", "../会議.mp4", []byte("fake video"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	body := decode[server.JobResponse](t, resp.Body)
	if body.JobID != "job-1" || len(body.Sentences) != 2 || body.SourceName != "会議.mp4" {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(body.Speakers) != 1 || body.Speakers[0] != "B" {
		t.Fatalf("unexpected speakers %v", body.Speakers)
	}
	if body.Timings[0].DurationMS != 1500 {
		t.Fatalf("unexpected timings %+v", body.Timings)
	}
	if string(runner.content) != "fake video" || runner.got.SizeBytes != 10 || len(runner.got.ContentHash) != 64 {
		t.Fatalf("runner saw %q size=%d hash=%q", runner.content, runner.got.SizeBytes, runner.got.ContentHash)
	}
	entries, _ := os.ReadDir(cfg.Paths.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("upload not removed: %v", entries)
	}
}

func TestUploadPipelineFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{err: services.Wrap(services.ErrDiarization, "diarization", "pyannote", "", errors.New("gated model"))}
	srv := newServer(t, cfg, runner)

	resp := postUpload(t, srv, "video", "meeting.mp4", []byte("x"))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	body := decode[server.ErrorResponse](t, resp.Body)
	if body.Stage != "diarization" || body.Error != "Diarization error: gated model" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestUploadBusy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv := newServer(t, cfg, &fakeRunner{busy: true})
	resp := postUpload(t, srv, "video", "meeting.mp4", []byte("x"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	srv = newServer(t, cfg, &fakeRunner{err: services.Wrap(services.ErrBusy, "validation", "lock", "held", nil)})
	resp = postUpload(t, srv, "video", "meeting.mp4", []byte("x"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status for lock contention %d", resp.StatusCode)
	}
}

func TestUploadRejections(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.MaxUploadMB = 1
	srv := newServer(t, cfg, &fakeRunner{})

	if resp := postUpload(t, srv, "video", "notes.txt", []byte("x")); resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("extension: status %d", resp.StatusCode)
	}
	if resp := postUpload(t, srv, "file", "meeting.mp4", []byte("x")); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing field: status %d", resp.StatusCode)
	}
	if resp := postUpload(t, srv, "video", "big.mp4", make([]byte, (1<<20)+1)); resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("too large: status %d", resp.StatusCode)
	}
	resp, err := http.Post(srv.URL+"/api/jobs", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-multipart: status %d", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("secret"))
	srv := newServer(t, cfg, &fakeRunner{})

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	status := decode[server.StatusResponse](t, resp.Body)
	if !status.Ready || status.Backend != "whisperx/large-v3" || status.HistoryEnabled {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestHistoryRoutes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store := testsupport.MustOpenHistory(t, cfg)
	testsupport.RecordJob(t, store, &history.Job{
		ID:         "ok",
		SourceName: "meeting.mp4",
		Status:     history.StatusSucceeded,
		Transcript: "Hello, world.",
		Sentences:  []turns.LabeledSentence{{Speaker: "A", Text: "Hello, world", StartTime: "00:00:01"}},
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	testsupport.RecordJob(t, store, &history.Job{
		ID:          "bad",
		SourceName:  "broken.mp4",
		Status:      history.StatusFailed,
		FailedStage: "extraction",
		CreatedAt:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	srv := newServer(t, cfg, &fakeRunner{}, server.WithStore(store))

	resp, err := http.Get(srv.URL + "/api/jobs?limit=10")
	if err != nil {
		t.Fatal(err)
	}
	list := decode[server.JobListResponse](t, resp.Body)
	resp.Body.Close()
	if len(list.Jobs) != 2 || list.Jobs[0].JobID != "bad" {
		t.Fatalf("unexpected list %+v", list)
	}

	resp, err = http.Get(srv.URL + "/api/jobs/ok")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[server.JobDetail](t, resp.Body)
	resp.Body.Close()
	if got.Transcript != "Hello, world." || len(got.Sentences) != 1 {
		t.Fatalf("unexpected detail %+v", got)
	}

	resp, err = http.Get(srv.URL + "/api/jobs/ok/export.csv")
	if err != nil {
		t.Fatal(err)
	}
	csvBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(csvBody) != "speaker,text,start_time\nA,\"Hello, world\",00:00:01\n" {
		t.Fatalf("unexpected csv %q", csvBody)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "filename") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	resp, err = http.Get(srv.URL + "/api/jobs/ok/export?format=markdown")
	if err != nil {
		t.Fatal(err)
	}
	md, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(md), "**A** (00:00:01): Hello, world") {
		t.Fatalf("unexpected markdown %q", md)
	}

	resp, err = http.Get(srv.URL + "/api/jobs/bad/export.csv")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 exporting failed job, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/jobs/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/jobs/bad", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := newServer(t, testsupport.NewConfig(t), &fakeRunner{})
	resp, err := http.Get(srv.URL + "/api/jobs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
