package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leadcast/internal/devicewatch"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := devicewatch.Lister{}.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No video devices found")
				return nil
			}
			configured := ctx.configValue().Capture.VideoDevice
			rows := make([][]string, 0, len(devices))
			for _, device := range devices {
				marker := ""
				if device.Path == configured {
					marker = "*"
				}
				rows = append(rows, []string{device.Path, device.Name, marker})
			}
			fmt.Fprintln(out, renderTable(tableSpec{headers: []string{"Device", "Name", "Configured"}}, rows))
			return nil
		},
	}
	devicesCmd.AddCommand(newDevicesWatchCommand(ctx))
	return devicesCmd
}

func newDevicesWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print camera hotplug events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			monitor := devicewatch.NewMonitor(ctx.log(), func(_ context.Context, event devicewatch.Event) {
				fmt.Fprintf(out, "%s  %-6s %s\n", time.Now().Format("15:04:05"), event.Action, event.Device)
			})
			if err := monitor.Start(runCtx); err != nil {
				return fmt.Errorf("start device monitor: %w", err)
			}
			defer monitor.Stop()

			fmt.Fprintln(out, "Watching for camera changes (Ctrl+C to stop)")
			<-runCtx.Done()
			return nil
		},
	}
}
