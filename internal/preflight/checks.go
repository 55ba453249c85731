package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sys/unix"

	"minutes/internal/config"
	"minutes/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckHFToken verifies a HuggingFace token is configured. pyannote pipelines
// are gated, so diarization cannot start without one.
func CheckHFToken(token string) Result {
	const name = "HuggingFace token"
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Name: name, Detail: "missing (set HUGGINGFACE_TOKEN or diarization.hf_token)"}
	}
	if !strings.HasPrefix(token, "hf_") {
		return Result{Name: name, Passed: true, Detail: "configured (unexpected prefix)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckOpenAIKey verifies an OpenAI key is present without contacting the API.
func CheckOpenAIKey(key string) Result {
	const name = "OpenAI API key"
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "missing (set OPENAI_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckOpenAI verifies that the transcription API is reachable and the key is
// valid. It uses a 15-second timeout and a single attempt.
func CheckOpenAI(ctx context.Context, key, baseURL string) Result {
	const name = "OpenAI API"
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(baseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	client := openai.NewClientWithConfig(clientCfg)
	if _, err := client.ListModels(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeOpenAIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckSystemDeps evaluates the external commands for cfg. uvx is always
// required because diarization runs through it.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "uvx",
			Command:     cfg.UVXBinary(),
			Description: "Required for pyannote diarization and WhisperX",
			VersionArgs: []string{"--version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

func summarizeOpenAIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 {
			return "auth failed (invalid api key)"
		}
		return fmt.Sprintf("API error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return err.Error()
}
