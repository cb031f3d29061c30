package preflight

import (
	"context"

	"leadcast/internal/config"
	"leadcast/internal/services/telegram"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// BotChecker verifies a bot token.
type BotChecker interface {
	GetMe(ctx context.Context, token string) (telegram.User, error)
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes the applicable checks for the given config. A nil bot
// checker skips the bot checks.
func RunAll(ctx context.Context, cfg *config.Config, bots BotChecker) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Save directory", cfg.Paths.SaveDir))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckFFmpeg(ctx, cfg.FFmpegBinary()))
	results = append(results, CheckCaptureFormat(ctx, cfg.FFmpegBinary()))
	results = append(results, CheckVideoDevice(cfg.Capture.VideoDevice))

	if cfg.Delivery.Mode == config.DeliveryModeShare {
		results = append(results, CheckShareCommand(cfg.Share.Command))
	}
	if bots != nil {
		for _, outcome := range cfg.Outcomes() {
			route := cfg.Routes[outcome]
			if route.BotToken == "" {
				continue
			}
			results = append(results, CheckBot(ctx, bots, outcome, route))
		}
	}
	return results
}
