package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leadcast/internal/logging"
)

// DefaultMaxAge is how long staged files are kept.
const DefaultMaxAge = 24 * time.Hour

// SweepResult contains the outcome of a sweep.
type SweepResult struct {
	Removed []string
	Freed   int64
	Errors  []SweepError
}

// SweepError pairs a path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes staging entries last modified before now-maxAge. A missing
// directory is not an error.
func Sweep(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	logger = logging.NewComponentLogger(logger, "staging")

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		size := info.Size()
		if info.IsDir() {
			size, _ = dirSize(path)
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove staged file", "staging_sweep_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		result.Freed += size
	}

	if len(result.Removed) > 0 {
		logger.Info("staging swept",
			logging.Int("removed", len(result.Removed)),
			logging.Int64("freed_bytes", result.Freed),
			logging.String(logging.FieldEventType, "staging_sweep"),
		)
	}
	return result
}

// Usage summarizes what the staging directory currently holds.
type Usage struct {
	Entries int
	Bytes   int64
	Oldest  time.Time
}

// Measure walks the staging directory. A missing directory reports zero usage.
func Measure(stagingDir string) (Usage, error) {
	var usage Usage
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return usage, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return usage, nil
		}
		return usage, err
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		usage.Entries++
		if info.IsDir() {
			size, _ := dirSize(filepath.Join(stagingDir, entry.Name()))
			usage.Bytes += size
		} else {
			usage.Bytes += info.Size()
		}
		if usage.Oldest.IsZero() || info.ModTime().Before(usage.Oldest) {
			usage.Oldest = info.ModTime()
		}
	}
	return usage, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
