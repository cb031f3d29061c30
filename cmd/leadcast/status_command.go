package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"leadcast/internal/config"
	"leadcast/internal/deps"
	"leadcast/internal/preflight"
	"leadcast/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipBots bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, devices and bot routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var bots preflight.BotChecker
			if !skipBots {
				bots = ctx.telegramClient()
			}
			results := preflight.RunAll(commandContextOrBackground(cmd), cfg, bots)

			statuses := preflight.CheckSystemDeps(cfg)
			writeDependencySection(out, statuses, colorize)
			fmt.Fprintln(out)
			writePreflightSection(out, results, colorize)
			writeStagingLine(out, cfg.Paths.StagingDir, colorize)
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderRoutes(cfg))

			failed := len(preflight.Failed(results)) + len(deps.Missing(statuses))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipBots, "skip-bots", false, "Do not call getMe for each configured bot")
	return cmd
}

func writeDependencySection(out io.Writer, statuses []deps.Status, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
	for _, status := range statuses {
		kind := statusOK
		message := status.Detail
		switch {
		case status.Available:
		case status.Optional:
			kind = statusWarn
		default:
			kind = statusError
		}
		if message == "" {
			message = status.Path
		}
		fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
	}
}

func writePreflightSection(out io.Writer, results []preflight.Result, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
}

func writeStagingLine(out io.Writer, dir string, colorize bool) {
	usage, err := staging.Measure(dir)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Staged files", statusWarn, err.Error(), colorize))
		return
	}
	message := "empty"
	if usage.Entries > 0 {
		message = fmt.Sprintf("%d entries, %s, oldest %s", usage.Entries, humanize.Bytes(uint64(usage.Bytes)), humanize.Time(usage.Oldest))
	}
	fmt.Fprintln(out, renderStatusLine("Staged files", statusInfo, message, colorize))
}

func renderRoutes(cfg *config.Config) string {
	outcomes := cfg.Outcomes()
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		route := cfg.Routes[outcome]
		marker := ""
		if strings.EqualFold(outcome, cfg.Delivery.DefaultOutcome) {
			marker = "yes"
		}
		rows = append(rows, []string{outcome, route.Name, route.ChatID, yesNo(route.BotToken != ""), marker})
	}
	if len(rows) == 0 {
		return "No outcome routes configured"
	}
	return renderTable(tableSpec{
		title:   "Routes",
		headers: []string{"Outcome", "Name", "Chat", "Bot", "Default"},
	}, rows)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
