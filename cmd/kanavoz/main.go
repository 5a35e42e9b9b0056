package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ent0n29/kanavoz/internal/config"
	"github.com/ent0n29/kanavoz/internal/logging"
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kanavoz: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	root := &cobra.Command{
		Use:           "kanavoz",
		Short:         "Spanish to Japanese translation backend with spoken audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("KANAVOZ_CONFIG"), "path to a kanavoz.yaml config file")
	root.AddCommand(serve, newTranslateCommand())
	return root
}

// loadRuntime reads the config and builds the root logger from it.
func loadRuntime() (*config.Config, zerolog.Logger, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("loader.Load() > %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}
