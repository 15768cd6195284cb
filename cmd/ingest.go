package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/studyowl/studyowl/internal/app"
)

var clearExisting bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Index course transcripts into the vector store",
	Long: `Reads transcript files from the given folder (or the configured
docs folder) and indexes them. Courses already present in the index are
skipped unless --clear is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&clearExisting, "clear", false, "drop the existing index before loading")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	folder := cfg.DocsFolder
	if len(args) == 1 {
		folder = args[0]
	}
	if folder == "" {
		return fmt.Errorf("no folder given and no docs folder configured")
	}

	unlock, err := acquireIngestLock(ingestLockPath())
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.System.Ingest(ctx, folder, clearExisting)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", folder, err)
	}

	fmt.Printf("Indexed %d new courses (%d chunks)\n", stats.Courses, stats.Chunks)
	return nil
}

func ingestLockPath() string {
	return filepath.Join(os.TempDir(), "studyowl-ingest.lock")
}

// acquireIngestLock takes an exclusive file lock so concurrent ingest runs
// cannot interleave writes to the index. The returned function releases it.
func acquireIngestLock(path string) (func(), error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another ingest is already running (lock held at %s)", path)
	}
	return func() { _ = lock.Unlock() }, nil
}
