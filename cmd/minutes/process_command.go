package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minutes/internal/config"
	"minutes/internal/export"
	"minutes/internal/pipeline"
	"minutes/internal/tui"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath    string
		formatFlag    string
		rollingCursor bool
		view          bool
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Transcribe, diarize and label a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if rollingCursor {
				cfg.Labeling.RollingCursor = true
			}
			format, err := resolveFormat(formatFlag, cfg)
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			target := outputPath
			if target == "" {
				target = filepath.Join(filepath.Dir(source), export.FileName(cfg.Export.FileName, format))
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, _, closeStore, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := p.Run(runCtx, pipeline.Request{SourcePath: source})
			if err != nil {
				return presentRunError(err)
			}

			doc := export.Document{
				JobID:      result.JobID,
				SourceName: result.SourceName,
				Transcript: result.Transcript,
				Sentences:  result.Sentences,
				Backend:    result.Backend,
				CreatedAt:  result.CompletedAt,
			}
			size, err := writeExportFile(target, format, doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printMinutes(out, doc)
			elapsed := result.CompletedAt.Sub(result.StartedAt).Round(time.Second)
			fmt.Fprintf(out, "\nProcessed %s (%s) in %s\n", result.SourceName, humanBytes(result.SizeBytes), elapsed)
			fmt.Fprintf(out, "Wrote %s (%s sentences, %s)\n", target, humanize.Comma(int64(len(doc.Sentences))), humanBytes(size))

			if view {
				if !isTerminal(out) {
					fmt.Fprintln(cmd.ErrOrStderr(), "--view ignored: stdout is not a terminal")
					return nil
				}
				if err := tui.Run(doc); err != nil {
					return fmt.Errorf("viewer: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Export destination (default: next to the video)")
	cmd.Flags().StringVar(&formatFlag, "format", "", "Export format: csv, json or markdown")
	cmd.Flags().BoolVar(&rollingCursor, "rolling-cursor", false, "Resume each sentence search after the previous match")
	cmd.Flags().BoolVar(&view, "view", false, "Open the interactive viewer when finished")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run result as JSON")
	return cmd
}
