package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"leadcast/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var attemptID string
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent delivery steps from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx := commandContextOrBackground(cmd)
			out := cmd.OutOrStdout()

			if pruneDays > 0 {
				removed, err := store.Prune(runCtx, time.Now().AddDate(0, 0, -pruneDays))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d journal entries older than %d days\n", removed, pruneDays)
				return nil
			}

			var entries []journal.Entry
			if attemptID != "" {
				entries, err = store.ForAttempt(runCtx, attemptID)
			} else {
				entries, err = store.Recent(runCtx, limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "Journal is empty")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of steps to show")
	cmd.Flags().StringVar(&attemptID, "attempt", "", "Show every step of one attempt")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete entries older than this many days instead of listing")
	return cmd
}

func renderHistory(entries []journal.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		detail := entry.Kind
		if entry.Error != "" {
			detail = entry.Error
		}
		rows = append(rows, []string{
			humanize.Time(entry.CreatedAt),
			shortAttempt(entry.AttemptID),
			entry.Outcome,
			entry.Channel,
			entry.Status,
			humanize.Bytes(uint64(entry.ArtifactBytes)),
			entry.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	return renderTable(tableSpec{
		headers:   []string{"Time", "Attempt", "Outcome", "Channel", "Status", "Bytes", "Took", "Detail"},
		aligns:    []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		maxWidths: []int{0, 0, 0, 0, 0, 0, 0, 48},
	}, rows)
}

func shortAttempt(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
