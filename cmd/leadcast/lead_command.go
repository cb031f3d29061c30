package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"leadcast/internal/capture"
	"leadcast/internal/config"
	"leadcast/internal/delivery"
	"leadcast/internal/workflow"
)

func newLeadCommand(ctx *commandContext) *cobra.Command {
	var outcomeFlag string
	var once bool
	var fields *leadFlags

	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Record and deliver leads interactively",
		Long: "Collects the lead details, records a video, and delivers it to the " +
			"destination for the chosen outcome. After a successful send the cycle " +
			"resets for the next lead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			logger := ctx.log()
			session, format, err := workflow.BuildSession(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			enricher, err := workflow.BuildEnricher(cfg, logger)
			if err != nil {
				_ = session.Release()
				return err
			}

			resets := make(chan struct{}, 1)
			timeout, maxAge := workflow.LocationTimings(cfg)
			cycle, err := workflow.NewCycle(workflow.Options{
				Session:         session,
				Enricher:        enricher,
				Deliverer:       rt.orchestrator,
				Logger:          logger,
				ResetDelay:      workflow.ResetDelay(cfg),
				LocationTimeout: timeout,
				LocationMaxAge:  maxAge,
				OnReset: func() {
					select {
					case resets <- struct{}{}:
					default:
					}
				},
			})
			if err != nil {
				_ = session.Release()
				return err
			}
			defer cycle.Close()

			out := cmd.OutOrStdout()
			runner := &leadRunner{
				cfg:      cfg,
				cycle:    cycle,
				session:  session,
				prompt:   newPrompter(runCtx, cmd.InOrStdin(), out),
				out:      out,
				colorize: shouldColorize(out),
				fields:   fields,
				outcome:  strings.TrimSpace(outcomeFlag),
				resets:   resets,
			}
			fmt.Fprintf(out, "Recording format: %s\n", format)
			err = runner.run(runCtx, once)
			if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	fields = bindLeadFlags(cmd)
	cmd.Flags().StringVarP(&outcomeFlag, "outcome", "o", "", "Outcome tag used for every lead (prompted when empty)")
	cmd.Flags().BoolVar(&once, "once", false, "Exit after the first delivered lead")
	return cmd
}

type leadRunner struct {
	cfg      *config.Config
	cycle    *workflow.Cycle
	session  *capture.Session
	prompt   *prompter
	out      io.Writer
	colorize bool
	fields   *leadFlags
	outcome  string
	resets   <-chan struct{}
}

func (r *leadRunner) run(ctx context.Context, once bool) error {
	for first := true; ; first = false {
		fmt.Fprintln(r.out, renderSectionHeader("New lead", r.colorize))
		record, err := r.fields.collect(r.prompt, first)
		if err != nil {
			return err
		}
		status, err := r.captureAndSend(ctx, record)
		if err != nil {
			return err
		}
		if once {
			return nil
		}
		if status != delivery.StatusSent {
			r.cycle.Reset()
			continue
		}
		select {
		case <-r.resets:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// captureAndSend loops until the lead is delivered or saved for manual
// sharing and returns that status.
func (r *leadRunner) captureAndSend(ctx context.Context, record delivery.Record) (delivery.Status, error) {
	if err := r.recordOnce(ctx); err != nil {
		return "", err
	}
	for {
		action, err := r.prompt.ask("[s]end, [r]etake, [p]review, [q]uit: ")
		if err != nil {
			return "", err
		}
		switch strings.ToLower(action) {
		case "s", "send", "":
			status, err := r.send(ctx, record)
			if err != nil {
				return "", err
			}
			if status != delivery.StatusFailed {
				return status, nil
			}
		case "r", "retake":
			if err := r.cycle.Retake(); err != nil {
				return "", err
			}
			if err := r.recordOnce(ctx); err != nil {
				return "", err
			}
		case "p", "preview":
			path, err := r.session.Preview()
			if err != nil {
				fmt.Fprintln(r.out, renderStatusLine("Preview", statusError, err.Error(), r.colorize))
				continue
			}
			fmt.Fprintln(r.out, renderStatusLine("Preview", statusInfo, path, r.colorize))
		case "q", "quit":
			return "", errQuit
		default:
			fmt.Fprintf(r.out, "Unknown action %q\n", action)
		}
	}
}

// recordOnce keeps the typed lead fields across device and empty-recording
// failures; each retry waits for the operator.
func (r *leadRunner) recordOnce(ctx context.Context) error {
	for {
		answer, err := r.prompt.ask("Press Enter to start recording ([q]uit): ")
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a == "q" || a == "quit" {
			return errQuit
		}
		if err := r.cycle.Record(ctx); err != nil {
			if errors.Is(err, capture.ErrDeviceUnavailable) {
				fmt.Fprintln(r.out, renderStatusLine("Camera", statusError, err.Error(), r.colorize))
				continue
			}
			return err
		}
		if _, err := r.prompt.ask("Recording... press Enter to stop"); err != nil {
			return err
		}
		artifact, err := r.cycle.Stop(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrRecordingEmpty) {
				fmt.Fprintln(r.out, renderStatusLine("Recording", statusWarn, "no video captured, try again", r.colorize))
				continue
			}
			return err
		}
		printArtifact(r.out, artifact)
		return nil
	}
}

// send returns StatusFailed for anything the operator can retry; the
// recording is kept in that case.
func (r *leadRunner) send(ctx context.Context, record delivery.Record) (delivery.Status, error) {
	outcome := r.outcome
	if outcome == "" {
		choice, err := r.prompt.choose("Outcome: ", r.cfg.Outcomes(), r.cfg.Delivery.DefaultOutcome)
		if err != nil {
			return "", err
		}
		outcome = choice
	}
	result, err := r.cycle.Send(ctx, record, outcome)
	switch {
	case errors.Is(err, delivery.ErrUnknownOutcome):
		fmt.Fprintln(r.out, renderStatusLine("Outcome", statusError, err.Error(), r.colorize))
		return delivery.StatusFailed, nil
	case errors.Is(err, delivery.ErrInFlight):
		fmt.Fprintln(r.out, renderStatusLine("Send", statusWarn, "already sending", r.colorize))
		return delivery.StatusFailed, nil
	case errors.Is(err, workflow.ErrNoArtifact):
		return "", err
	}
	printResult(r.out, result, r.colorize)
	if err != nil {
		return delivery.StatusFailed, nil
	}
	return result.Status, nil
}
