package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"minutes/internal/diarize"
	"minutes/internal/export"
	"minutes/internal/turns"
)

func newLabelCommand(ctx *commandContext) *cobra.Command {
	var (
		transcriptPath string
		segmentsPath   string
		outputPath     string
		formatFlag     string
		rollingCursor  bool
	)

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Attribute transcript sentences to speakers from saved segments",
		Long: "Runs turn labeling alone. The transcript is plain text; segments are\n" +
			`JSON of the form {"segments":[{"start":0.0,"end":1.5,"speaker":"SPEAKER_00"}]}.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(transcriptPath) == "" || strings.TrimSpace(segmentsPath) == "" {
				return errors.New("--transcript and --segments are required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			format, err := resolveFormat(formatFlag, cfg)
			if err != nil {
				return err
			}

			transcript, err := os.ReadFile(transcriptPath)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			raw, err := os.ReadFile(segmentsPath)
			if err != nil {
				return fmt.Errorf("read segments: %w", err)
			}
			segments, err := diarize.ParseSegments(raw)
			if err != nil {
				return fmt.Errorf("parse segments %s: %w", segmentsPath, err)
			}

			opts := turns.Options{RollingCursor: rollingCursor || cfg.Labeling.RollingCursor}
			sentences, err := turns.LabelWithOptions(string(transcript), segments, opts)
			if err != nil {
				return err
			}

			doc := export.Document{
				SourceName: filepath.Base(transcriptPath),
				Transcript: strings.TrimSpace(string(transcript)),
				Sentences:  sentences,
			}
			if outputPath == "" {
				return export.Write(cmd.OutOrStdout(), format, doc)
			}
			size, err := writeExportFile(outputPath, format, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d sentences, %s)\n", outputPath, len(sentences), humanBytes(size))
			return nil
		},
	}

	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Transcript text file")
	cmd.Flags().StringVar(&segmentsPath, "segments", "", "Diarization segments JSON file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Export destination (default: stdout)")
	cmd.Flags().StringVar(&formatFlag, "format", "", "Export format: csv, json or markdown")
	cmd.Flags().BoolVar(&rollingCursor, "rolling-cursor", false, "Resume each sentence search after the previous match")
	return cmd
}
