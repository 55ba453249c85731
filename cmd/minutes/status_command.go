package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"minutes/internal/deps"
	"minutes/internal/preflight"
)

type statusReport struct {
	Config       string             `json:"config"`
	Backend      string             `json:"backend"`
	Dependencies []deps.Status      `json:"dependencies"`
	Checks       []preflight.Result `json:"checks"`
	Ready        bool               `json:"ready"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var online bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report external tools and credential readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				Config:       ctx.configPath(),
				Backend:      cfg.Transcription.Backend,
				Dependencies: preflight.CheckSystemDeps(cmd.Context(), cfg),
				Checks:       preflight.RunAll(cmd.Context(), cfg, online),
				Ready:        true,
			}
			for _, dep := range report.Dependencies {
				if !dep.Ready() {
					report.Ready = false
				}
			}
			if len(preflight.Failed(report.Checks)) > 0 {
				report.Ready = false
			}

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderStatus(cmd, report)
			}
			if !report.Ready {
				return errors.New("minutes is not ready; resolve the items marked ERROR")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "Also verify remote APIs (openai backend)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := isTerminal(out)

	fmt.Fprintf(out, "Config:  %s\n", report.Config)
	fmt.Fprintf(out, "Backend: %s\n\n", report.Backend)

	depRows := make([][]string, 0, len(report.Dependencies))
	for _, dep := range report.Dependencies {
		kind := statusOK
		detail := dep.Version
		switch {
		case !dep.Available && dep.Optional:
			kind, detail = statusWarn, dep.Detail
		case !dep.Available:
			kind, detail = statusError, dep.Detail
		}
		depRows = append(depRows, []string{dep.Name, statusCell(kind, colorize), dep.Command, detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Command", "Detail"}, depRows, nil))

	checkRows := make([][]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		checkRows = append(checkRows, []string{check.Name, statusCell(kind, colorize), check.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, checkRows, nil))
}
