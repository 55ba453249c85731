package config

const (
	defaultConfigPath        = "~/.config/minutes/config.toml"
	projectConfigName        = "minutes.toml"
	defaultWorkDir           = "~/.cache/minutes/work"
	defaultStateDir          = "~/.local/share/minutes"
	defaultTranscriptionBack = BackendWhisperX
	defaultWhisperXModel     = "large-v3"
	defaultOpenAIModel       = "whisper-1"
	defaultTranscribeTimeout = 3600
	defaultDiarizePipeline   = "pyannote/speaker-diarization"
	defaultMinDurationOn     = 0.5
	defaultExportFormat      = FormatCSV
	defaultExportFileName    = "議事録.csv"
	defaultServerBind        = "127.0.0.1:8501"
	defaultMaxUploadMB       = 2048
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Transcription backends.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

// Export formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
		},
		Transcription: Transcription{
			Backend:        defaultTranscriptionBack,
			Model:          defaultWhisperXModel,
			OpenAIModel:    defaultOpenAIModel,
			TimeoutSeconds: defaultTranscribeTimeout,
		},
		Diarization: Diarization{
			Pipeline:      defaultDiarizePipeline,
			MinDurationOn: defaultMinDurationOn,
		},
		Export: Export{
			Format:   defaultExportFormat,
			FileName: defaultExportFileName,
		},
		Server: Server{
			Bind:              defaultServerBind,
			MaxUploadMB:       defaultMaxUploadMB,
			AllowedExtensions: []string{"mp4"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
