package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studyowl/studyowl/api"
	"github.com/studyowl/studyowl/internal/app"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting studyowl", "version", AppVersion, "provider", cfg.Provider)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Load any documents already on disk. A missing or empty folder is not
	// fatal; the server still answers from whatever the index holds.
	if cfg.DocsFolder != "" {
		stats, err := a.System.Ingest(ctx, cfg.DocsFolder, false)
		if err != nil {
			logger.Warn("startup ingest failed", "folder", cfg.DocsFolder, "error", err)
		} else {
			logger.Info("loaded course documents", "courses", stats.Courses, "chunks", stats.Chunks)
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}

	server := api.NewServer(a.System, a.DBPool, cfg.CORSOrigins, logger)
	return server.Run(ctx, addr)
}
