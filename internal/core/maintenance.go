package core

// maintenance.go runs the periodic sweeps of the upload staging and export
// directories. Uploads are normally removed by ImportFile; the sweep catches
// files left behind by crashed or abandoned requests. Workbooks written by
// sync runs stay in the export directory until they age out.

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SweepConfig holds configuration for a file sweeper.
type SweepConfig struct {
	Name     string        // log label, e.g. "uploads" or "exports"
	Dir      string        // directory to sweep
	MaxAge   time.Duration // files older than this are removed (default: 24h)
	Interval time.Duration // how often to run (default: 1h)
}

// StartFileSweeper removes stale files from cfg.Dir now and then every
// Interval until ctx is cancelled.
func StartFileSweeper(ctx context.Context, cfg SweepConfig) {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	slog.Info("file sweeper started",
		"name", cfg.Name,
		"dir", cfg.Dir,
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.Interval.String(),
	)

	runSweep(cfg, time.Now())

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("file sweeper stopped", "name", cfg.Name)
			return
		case now := <-ticker.C:
			runSweep(cfg, now)
		}
	}
}

func runSweep(cfg SweepConfig, now time.Time) {
	start := time.Now()
	removed, err := SweepStaleFiles(cfg.Dir, cfg.MaxAge, now)
	if err != nil {
		slog.Error("file sweep failed", "name", cfg.Name, "dir", cfg.Dir, "error", err)
		return
	}
	if removed > 0 {
		slog.Info("removed stale files",
			"name", cfg.Name,
			"files_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// SweepStaleFiles deletes regular files in dir last modified more than
// maxAge before now. A missing directory is not an error.
func SweepStaleFiles(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove stale file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
