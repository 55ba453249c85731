package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minutes/internal/export"
	"minutes/internal/history"
	"minutes/internal/tui"
)

func newViewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "view <job-id>",
		Short: "Browse a recorded run in the terminal viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc export.Document
			err := withHistory(ctx, func(store *history.Store) error {
				job, err := loadJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				if !job.Succeeded() {
					return fmt.Errorf("job %s failed at %s: %s", job.ID, job.FailedStage, job.ErrorMessage)
				}
				doc = export.FromJob(job)
				return nil
			})
			if err != nil {
				return err
			}
			if !isTerminal(cmd.OutOrStdout()) {
				printMinutes(cmd.OutOrStdout(), doc)
				return nil
			}
			return tui.Run(doc)
		},
	}
}
