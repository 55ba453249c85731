package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minutes/internal/export"
	"minutes/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune recorded runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryExportCommand(ctx))
	historyCmd.AddCommand(newHistoryRemoveCommand(ctx))
	return historyCmd
}

// withHistory opens the store for the duration of fn.
func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// loadJob resolves a job ID, or the content hash of a processed video, to a
// stored job.
func loadJob(cmd *cobra.Command, store *history.Store, ref string) (*history.Job, error) {
	ref = strings.TrimSpace(ref)
	job, err := store.Get(cmd.Context(), ref)
	if errors.Is(err, history.ErrNotFound) && isContentHash(ref) {
		job, err = store.FindByHash(cmd.Context(), strings.ToLower(ref))
	}
	if errors.Is(err, history.ErrNotFound) {
		return nil, fmt.Errorf("job %s not found", ref)
	}
	return job, err
}

// isContentHash reports whether ref looks like a hex blake3-256 digest.
func isContentHash(ref string) bool {
	if len(ref) != 64 {
		return false
	}
	for _, r := range ref {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				jobs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, jobSummaries(jobs))
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				colorize := isTerminal(out)
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					kind := statusOK
					if !job.Succeeded() {
						kind = statusError
					}
					rows = append(rows, []string{
						job.ID,
						job.SourceName,
						statusCell(kind, colorize),
						fmt.Sprintf("%d", len(job.Sentences)),
						job.Elapsed().Round(time.Second).String(),
						humanize.Time(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Source", "Status", "Sentences", "Elapsed", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type jobSummary struct {
	ID          string         `json:"id"`
	SourceName  string         `json:"source_name"`
	Status      history.Status `json:"status"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	Sentences   int            `json:"sentences"`
	CreatedAt   time.Time      `json:"created_at"`
}

func jobSummaries(jobs []*history.Job) []jobSummary {
	out := make([]jobSummary, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobSummary{
			ID:          job.ID,
			SourceName:  job.SourceName,
			Status:      job.Status,
			FailedStage: job.FailedStage,
			Error:       job.ErrorMessage,
			Sentences:   len(job.Sentences),
			CreatedAt:   job.CreatedAt,
		})
	}
	return out
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id|content-hash>",
		Short: "Show the transcript and minutes of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				job, err := loadJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, export.FromJob(job))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:      %s\n", job.ID)
				fmt.Fprintf(out, "Source:   %s (%s)\n", job.SourceName, humanBytes(job.SizeBytes))
				fmt.Fprintf(out, "Status:   %s\n", job.Status)
				if job.Backend != "" {
					fmt.Fprintf(out, "Backend:  %s\n", job.Backend)
				}
				fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Local().Format(time.DateTime))
				if !job.Succeeded() {
					fmt.Fprintf(out, "Failed:   %s: %s\n", job.FailedStage, job.ErrorMessage)
					return nil
				}
				for _, timing := range job.Timings {
					fmt.Fprintf(out, "  %-14s %s\n", timing.Stage, timing.Duration.Round(time.Millisecond))
				}
				fmt.Fprintln(out)
				printMinutes(out, export.FromJob(job))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "export <job-id|content-hash>",
		Short: "Export the minutes of a successful run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			format, err := resolveFormat(formatFlag, cfg)
			if err != nil {
				return err
			}
			return withHistory(ctx, func(store *history.Store) error {
				job, err := loadJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				if !job.Succeeded() {
					return fmt.Errorf("job %s failed at %s; nothing to export", job.ID, job.FailedStage)
				}
				doc := export.FromJob(job)
				if outputPath == "" {
					return export.Write(cmd.OutOrStdout(), format, doc)
				}
				size, err := writeExportFile(outputPath, format, doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", outputPath, humanBytes(size))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Export destination (default: stdout)")
	cmd.Flags().StringVar(&formatFlag, "format", "", "Export format: csv, json or markdown")
	return cmd
}

func newHistoryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <job-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete recorded runs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				out := cmd.OutOrStdout()
				var missing []string
				for _, id := range args {
					removed, err := store.Remove(cmd.Context(), strings.TrimSpace(id))
					if err != nil {
						return err
					}
					if !removed {
						missing = append(missing, id)
						continue
					}
					fmt.Fprintf(out, "Removed %s\n", id)
				}
				if len(missing) > 0 {
					return fmt.Errorf("not found: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}
