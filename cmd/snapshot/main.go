// Command snapshot persists consistent copies of the database to a blob
// directory, either once or on the configured autosave interval.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carteira/internal/config"
	"carteira/internal/embedded"
	applog "carteira/internal/log"
	"carteira/internal/storage"
)

func main() {
	_ = godotenv.Load()

	blobDir := flag.String("dir", "./data/snapshots", "directory snapshots are written to")
	once := flag.Bool("once", false, "take a single snapshot and exit")
	flag.Parse()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: "snapshot",
	})
	applog.SetDefault(logger)

	cfg := config.Load()

	blobs, err := embedded.NewFileBlobStore(*blobDir)
	if err != nil {
		logger.Error("Failed to prepare blob directory", "error", err, "dir", *blobDir)
		os.Exit(1)
	}

	store, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key := filepath.Base(cfg.SQLiteDBPath)

	save := func(ctx context.Context) error {
		tmp := filepath.Join(*blobDir, key+".export")
		defer os.Remove(tmp)

		if err := store.VacuumInto(ctx, tmp); err != nil {
			return err
		}
		data, err := os.ReadFile(tmp)
		if err != nil {
			return err
		}
		if err := blobs.Put(ctx, key, data); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Snapshot persisted", "key", key, "bytes", len(data))
		return nil
	}

	if *once {
		if err := save(ctx); err != nil {
			logger.Error("Snapshot failed", "error", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("Starting periodic snapshots",
		"interval", cfg.AutosaveInterval.String(), "dir", *blobDir)

	ticker := time.NewTicker(cfg.AutosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := save(ctx); err != nil {
				logger.Error("Snapshot failed", "error", err)
			}
		case <-ctx.Done():
			logger.Info("Stopping, taking final snapshot")
			if err := save(context.Background()); err != nil {
				logger.Error("Final snapshot failed", "error", err)
				os.Exit(1)
			}
			return
		}
	}
}
