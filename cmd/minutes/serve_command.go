package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"minutes/internal/pipeline"
	"minutes/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, store, closeStore, err := ctx.newPipeline(pipeline.WithFailFast())
			if err != nil {
				return err
			}
			defer closeStore()

			var opts []server.Option
			if store != nil {
				opts = append(opts, server.WithStore(store))
			}
			srv := server.New(cfg, p, logger, opts...)

			if err := srv.ListenAndServe(runCtx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides [server] bind)")
	return cmd
}
