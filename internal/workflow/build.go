package workflow

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"leadcast/internal/capture"
	"leadcast/internal/config"
	"leadcast/internal/location"
	"leadcast/internal/logging"
)

// BuildSession probes ffmpeg, negotiates the container format and
// constraints for the platform, and returns an idle capture session.
func BuildSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*capture.Session, capture.Format, error) {
	platform := capture.ResolvePlatform(cfg.Capture.Platform, runtime.GOOS, os.Getenv)
	constraints := capture.SelectCaptureConstraints(platform)

	format := capture.FallbackFormat
	caps, err := capture.ProbeCapabilities(ctx, cfg.FFmpegBinary())
	if err != nil {
		logging.WarnWithContext(logger, "ffmpeg capability probe failed", "capability_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check capture.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "recording uses the fallback format"),
		)
	} else {
		format = capture.SelectContainerFormat(nil, caps.Supports)
	}
	if logger != nil {
		logger.Debug("capture negotiated",
			logging.String("platform", string(platform)),
			logging.String("format", string(format)),
		)
	}

	session, err := capture.NewSession(capture.SessionOptions{
		Device:        capture.NewFFmpegDevice(cfg.Capture, platform, cfg.Paths.LockDir, logger),
		Recorder:      capture.NewFFmpegRecorder(cfg.Capture, logger),
		Constraints:   constraints,
		Format:        format,
		FlushInterval: time.Duration(cfg.Capture.FlushIntervalMS) * time.Millisecond,
		MaxDuration:   time.Duration(cfg.Capture.MaxDurationSeconds) * time.Second,
		PreviewDir:    cfg.Paths.StagingDir,
		Logger:        logger,
	})
	if err != nil {
		return nil, "", err
	}
	return session, format, nil
}

// BuildEnricher returns the configured location enricher.
func BuildEnricher(cfg *config.Config, logger *slog.Logger) (*location.Enricher, error) {
	provider, err := location.NewProvider(cfg.Location, nil)
	if err != nil {
		return nil, err
	}
	return location.NewEnricher(provider, logger), nil
}

// LocationTimings returns the lookup timeout and maximum cached age.
func LocationTimings(cfg *config.Config) (time.Duration, time.Duration) {
	return time.Duration(cfg.Location.TimeoutMS) * time.Millisecond,
		time.Duration(cfg.Location.MaxAgeMS) * time.Millisecond
}

// ResetDelay returns the configured delay before a sent cycle resets.
func ResetDelay(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Delivery.ResetDelayMS) * time.Millisecond
}
