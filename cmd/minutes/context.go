package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"minutes/internal/config"
	"minutes/internal/diarize"
	"minutes/internal/history"
	"minutes/internal/logging"
	"minutes/internal/media/audio"
	"minutes/internal/pipeline"
	"minutes/internal/transcribe"
)

// errHistoryDisabled is returned by history commands when [history] is off.
var errHistoryDisabled = errors.New("run history is disabled; set [history] enabled = true in the config")

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	resolvedPath string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.resolvedPath, c.configExists = resolved, exists
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configPath returns the resolved config file path, annotated when the file
// does not exist.
func (c *commandContext) configPath() string {
	if c.configExists {
		return c.resolvedPath
	}
	return c.resolvedPath + " (not found, using defaults)"
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// openHistory opens the history store. It returns errHistoryDisabled when
// history is turned off.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errHistoryDisabled
	}
	return history.Open(cfg)
}

// stageSet holds the pipeline collaborators.
type stageSet struct {
	extractor   pipeline.Extractor
	transcriber pipeline.Transcriber
	diarizer    pipeline.Diarizer
}

// newStages builds the production collaborators. Tests replace it.
var newStages = func(cfg *config.Config, logger *slog.Logger) (stageSet, error) {
	transcriber, err := transcribe.New(cfg, logger)
	if err != nil {
		return stageSet{}, err
	}
	return stageSet{
		extractor:   audio.NewExtractor(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger, audio.WithLanguage(cfg.Transcription.Language)),
		transcriber: transcriber,
		diarizer:    diarize.New(cfg, logger),
	}, nil
}

// newPipeline wires a pipeline. When history is enabled the returned closer
// releases the store; it is never nil.
func (c *commandContext) newPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, *history.Store, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	stages, err := newStages(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	closer := func() {}
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open history: %w", err)
		}
		opts = append(opts, pipeline.WithRecorder(store))
		closer = func() { _ = store.Close() }
	}
	p := pipeline.New(cfg, stages.extractor, stages.transcriber, stages.diarizer, logger, opts...)
	return p, store, closer, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
