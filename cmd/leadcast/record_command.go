package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leadcast/internal/delivery"
	"leadcast/internal/workflow"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	var identifier string
	var output string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a video and save it without sending",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, _, err := workflow.BuildSession(runCtx, cfg, ctx.log())
			if err != nil {
				return err
			}
			defer session.Release()

			out := cmd.OutOrStdout()
			if err := session.Start(runCtx); err != nil {
				return err
			}
			if duration > 0 {
				fmt.Fprintf(out, "Recording for %s\n", duration)
				timer := time.NewTimer(duration)
				select {
				case <-timer.C:
				case <-runCtx.Done():
					timer.Stop()
				}
			} else {
				prompt := newPrompter(runCtx, cmd.InOrStdin(), out)
				if _, err := prompt.ask("Recording... press Enter to stop"); err != nil && !errors.Is(err, errQuit) {
					return err
				}
			}

			artifact, err := session.Stop()
			if err != nil {
				return err
			}
			printArtifact(out, artifact)

			target := output
			if target == "" {
				format := delivery.NormalizeFormat(artifact.Format(), artifact.Bytes())
				name := delivery.FileName(cfg.Delivery.FilePrefix, identifier, format.Extension, artifact.CreatedAt())
				target = filepath.Join(cfg.Paths.SaveDir, name)
			}
			if err := artifact.WriteFile(target); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", target)
			return nil
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop automatically after this long")
	cmd.Flags().StringVar(&identifier, "name", "", "Identifier used in the file name")
	cmd.Flags().StringVarP(&output, "output", "O", "", "Write the recording to this path")
	return cmd
}
