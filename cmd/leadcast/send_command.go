package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leadcast/internal/capture"
	"leadcast/internal/delivery"
	"leadcast/internal/workflow"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var outcome string
	var formatLabel string
	var locationWait time.Duration
	var fields *leadFlags

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Deliver an existing video with the lead details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			record := fields.record()
			if err := record.Validate(); err != nil {
				return fmt.Errorf("lead details: %w", err)
			}
			artifact, err := capture.LoadArtifact(args[0], capture.Format(strings.TrimSpace(formatLabel)))
			if err != nil {
				return err
			}

			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			enricher, err := workflow.BuildEnricher(cfg, ctx.log())
			if err != nil {
				return err
			}
			timeout, maxAge := workflow.LocationTimings(cfg)
			lookup := enricher.Resolve(runCtx, timeout, maxAge)
			defer lookup.Cancel()
			if locationWait > 0 {
				waitCtx, cancel := context.WithTimeout(runCtx, locationWait)
				lookup.Wait(waitCtx)
				cancel()
			}

			if outcome == "" {
				outcome = cfg.Delivery.DefaultOutcome
			}
			attempt, err := delivery.NewAttempt(record, artifact, lookup, outcome)
			if err != nil {
				return err
			}
			result, err := rt.orchestrator.Deliver(runCtx, attempt)
			if len(result.Steps) > 0 {
				printResult(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
			}
			return err
		},
	}
	fields = bindLeadFlags(cmd)
	cmd.Flags().StringVarP(&outcome, "outcome", "o", "", "Outcome tag selecting the destination")
	cmd.Flags().StringVar(&formatLabel, "format", "", "Declared format label such as video/webm (sniffed when empty)")
	cmd.Flags().DurationVar(&locationWait, "location-wait", 2*time.Second, "How long to wait for a location fix before sending")
	return cmd
}
