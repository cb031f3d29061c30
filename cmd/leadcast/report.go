package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"leadcast/internal/capture"
	"leadcast/internal/delivery"
	"leadcast/internal/services"
)

func printArtifact(out io.Writer, artifact *capture.Artifact) {
	fmt.Fprintf(out, "Recorded %s (%s)\n", humanize.Bytes(uint64(artifact.Size())), artifact.Format())
}

func printResult(out io.Writer, result delivery.Result, colorize bool) {
	switch result.Status {
	case delivery.StatusSent:
		target := result.Destination.Name
		if target == "" {
			target = result.Destination.Outcome
		}
		message := fmt.Sprintf("via %s", result.Channel)
		if target != "" {
			message += " to " + target
		}
		fmt.Fprintln(out, renderStatusLine("Sent", statusOK, message, colorize))
	case delivery.StatusManual:
		fmt.Fprintln(out, renderStatusLine("Saved for manual sharing", statusWarn, result.Path, colorize))
		if result.Err != nil {
			fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, result.Err.Error(), colorize))
		}
	default:
		message := "no channel accepted the lead"
		if result.Err != nil {
			message = result.Err.Error()
		}
		fmt.Fprintln(out, renderStatusLine("Failed", statusError, message, colorize))
		if result.Err != nil && !services.Retryable(result.Err) {
			fmt.Fprintln(out, renderStatusLine("Hint", statusInfo, "retrying will not help; run `leadcast status` to check routes", colorize))
		}
	}
	for _, step := range result.Steps {
		kind := statusInfo
		detail := string(step.Status)
		if step.Err != nil {
			kind = statusWarn
			detail = fmt.Sprintf("%s (%s)", step.Status, step.Kind)
		}
		fmt.Fprintln(out, renderStatusLine("  "+step.Channel, kind, detail, colorize))
	}
}
