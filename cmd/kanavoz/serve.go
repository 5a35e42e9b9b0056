package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/ent0n29/kanavoz/internal/app"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audio expiry scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			built, err := app.Build(ctx, *cfg, app.OpenAIClients(cfg.OpenAI), nil, log)
			if err != nil {
				return fmt.Errorf("app.Build() > %w", err)
			}
			defer func() {
				if err := built.Cleanup(); err != nil {
					log.Warn().Err(err).Msg("audio backend cleanup failed")
				}
			}()

			ln, err := net.Listen("tcp", cfg.Server.BindAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Server.BindAddr, err)
			}
			return built.Serve(ctx, ln)
		},
	}
}
