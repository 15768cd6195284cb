// Package cmd wires the CLI commands for the studyowl binary.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "studyowl",
	Short: "Course material assistant backed by retrieval-augmented generation",
	Long: `studyowl indexes course transcripts into a vector store and answers
questions about them through an AI model with search tools.

Run "studyowl ingest" to load transcripts, then "studyowl serve" to start
the HTTP API, or "studyowl ask" for a one-shot question.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration and builds the process logger.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
