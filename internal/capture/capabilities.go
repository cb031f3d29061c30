package capture

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"leadcast/internal/services"
)

// Capabilities records which muxers and encoders the local ffmpeg build has.
type Capabilities struct {
	Muxers   map[string]struct{}
	Encoders map[string]struct{}
}

// Supports reports whether every component needed for the format exists.
func (c Capabilities) Supports(f Format) bool {
	enc, ok := EncodingFor(f)
	if !ok {
		return false
	}
	if _, ok := c.Muxers[enc.Muxer]; !ok {
		return false
	}
	if _, ok := c.Encoders[enc.VideoEncoder]; !ok {
		return false
	}
	_, ok = c.Encoders[enc.AudioEncoder]
	return ok
}

// ProbeCapabilities queries the ffmpeg binary once for its muxer and encoder
// lists.
func ProbeCapabilities(ctx context.Context, binary string) (Capabilities, error) {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	muxers, err := runListing(ctx, binary, "-muxers")
	if err != nil {
		return Capabilities{}, err
	}
	encoders, err := runListing(ctx, binary, "-encoders")
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{
		Muxers:   parseListing(muxers, 'E'),
		Encoders: parseListing(encoders, 0),
	}, nil
}

func runListing(ctx context.Context, binary, flag string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", flag)
	out, err := cmd.Output()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "capture", "probe ffmpeg", fmt.Sprintf("%s %s", binary, flag), err)
	}
	return string(out), nil
}

// parseListing reads the table printed after the "--" separator line. When
// requiredFlag is non-zero the flags column must contain it.
func parseListing(output string, requiredFlag byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			if strings.HasPrefix(line, "--") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if requiredFlag != 0 && !strings.ContainsRune(fields[0], rune(requiredFlag)) {
			continue
		}
		for _, name := range strings.Split(fields[1], ",") {
			if name = strings.TrimSpace(name); name != "" {
				names[name] = struct{}{}
			}
		}
	}
	return names
}
