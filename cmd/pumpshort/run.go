package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/pumpshort/internal/config"
	"github.com/sawpanic/pumpshort/internal/core"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the poll loop, orchestrator, and ops HTTP server",
	RunE:  runRun,
}

func loadConfig() (*config.ServiceConfig, error) {
	if configPath == "" {
		cfg := config.Default()
		return &cfg, cfg.Validate()
	}
	return config.Load(configPath)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := core.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("error closing core")
		}
	}()

	log.Info().Str("http_addr", cfg.HTTPServer.Addr).Msg("pumpshort starting")
	return svc.Run(ctx)
}
