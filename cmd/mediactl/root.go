package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mediavault/internal/bootstrap"
	"mediavault/internal/config"
	"mediavault/internal/database"
	"mediavault/internal/log"
	"mediavault/internal/service"
)

var rootCmd = &cobra.Command{
	Use:          "mediactl",
	Short:        "Operator tooling for a mediavault deployment",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: configuration, a logger and an open
// database. Storage is opened only by the commands that read blobs.
type env struct {
	cfg    *config.AppConfig
	logger zerolog.Logger
	db     database.Driver
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		logger: log.New(cfg.Environment, cfg.Log.Level),
		db:     db,
	}, nil
}

func (e *env) options() service.Options {
	return service.Options{
		DatabaseTimeout: e.cfg.Database.RequestTimeout,
		StorageTimeout:  e.cfg.Storage.RequestTimeout,
		Logger:          e.logger,
	}
}
