package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"leadcast/internal/config"
)

const versionProbeTimeout = 5 * time.Second

// Requirements lists the external programs the configuration needs.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.FFmpegBinary(),
		Description: "Captures and encodes camera video",
	}}
	if len(cfg.Share.Command) > 0 {
		reqs = append(reqs, Requirement{
			Name:        "Share command",
			Command:     cfg.Share.Command[0],
			Description: "Hands recordings to the host share facility",
			Optional:    cfg.Delivery.Mode != config.DeliveryModeShare,
		})
	}
	return reqs
}

// CheckFFmpeg resolves the ffmpeg binary and reports its version in Detail.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	status := Check(Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Captures and encodes camera video",
	})
	if !status.Available {
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	output, err := exec.CommandContext(probeCtx, status.Path, "-hide_banner", "-version").Output() //nolint:gosec
	if err != nil {
		status.Available = false
		status.Detail = fmt.Sprintf("version probe failed: %v", err)
		return status
	}
	status.Detail = versionLine(output)
	return status
}

func versionLine(output []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if fields := strings.Fields(line); len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
			return fields[2]
		}
		return line
	}
	return ""
}
