package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"minutes/internal/config"
	"minutes/internal/export"
	"minutes/internal/fileutil"
	"minutes/internal/services"
	"minutes/internal/turns"
)

// runError carries the user-facing message for a failed run while keeping the
// cause available to errors.Is.
type runError struct {
	msg string
	err error
}

func (e *runError) Error() string { return e.msg }
func (e *runError) Unwrap() error { return e.err }

func presentRunError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return &runError{msg: services.UserMessage(err), err: err}
}

// resolveFormat prefers the flag value and falls back to the configured default.
func resolveFormat(flagValue string, cfg *config.Config) (export.Format, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" && cfg != nil {
		value = cfg.Export.Format
	}
	return export.ParseFormat(value)
}

// writeExportFile writes doc to path atomically and returns the written size.
func writeExportFile(path string, format export.Format, doc export.Document) (int64, error) {
	if err := fileutil.WriteFileAtomic(path, func(w io.Writer) error {
		return export.Write(w, format, doc)
	}); err != nil {
		return 0, fmt.Errorf("write export %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func sentenceTable(sentences []turns.LabeledSentence) string {
	rows := make([][]string, 0, len(sentences))
	for _, s := range sentences {
		rows = append(rows, []string{s.Speaker, s.StartTime, s.Text})
	}
	return renderTable([]string{"Speaker", "Start", "Text"}, rows, nil)
}

func printMinutes(out io.Writer, doc export.Document) {
	fmt.Fprintln(out, "Transcript")
	if text := strings.TrimSpace(doc.Transcript); text != "" {
		fmt.Fprintln(out, text)
	} else {
		fmt.Fprintln(out, "(empty)")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Minutes")
	if len(doc.Sentences) == 0 {
		fmt.Fprintln(out, "(no sentences)")
		return
	}
	fmt.Fprintln(out, sentenceTable(doc.Sentences))
}

func humanBytes(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}
