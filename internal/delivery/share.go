package delivery

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"leadcast/internal/config"
	"leadcast/internal/fileutil"
	"leadcast/internal/services"
)

// ShareRequest is what the host share facility receives.
type ShareRequest struct {
	Title    string
	Text     string
	FilePath string
}

// ShareFacility hands a file to another application on the host.
type ShareFacility interface {
	CanShare(contentType string) bool
	Share(ctx context.Context, req ShareRequest) error
}

// CommandShare shares through a configured command line. Arguments may use
// the {file}, {title} and {text} placeholders.
type CommandShare struct {
	argv   []string
	accept []string
}

// NewCommandShare returns nil when no command is configured.
func NewCommandShare(cfg config.Share) *CommandShare {
	if len(cfg.Command) == 0 {
		return nil
	}
	return &CommandShare{
		argv:   append([]string(nil), cfg.Command...),
		accept: append([]string(nil), cfg.Accept...),
	}
}

// CanShare reports whether the command accepts contentType and is installed.
func (s *CommandShare) CanShare(contentType string) bool {
	if s == nil {
		return false
	}
	if _, err := exec.LookPath(s.argv[0]); err != nil {
		return false
	}
	contentType = strings.ToLower(contentType)
	for _, prefix := range s.accept {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// Share runs the command with placeholders expanded.
func (s *CommandShare) Share(ctx context.Context, req ShareRequest) error {
	replacer := strings.NewReplacer("{file}", req.FilePath, "{title}", req.Title, "{text}", req.Text)
	args := make([]string, len(s.argv))
	for i, arg := range s.argv {
		args[i] = replacer.Replace(arg)
	}
	binary, err := exec.LookPath(args[0])
	if err != nil {
		return &ChannelError{Channel: ChannelShare, Kind: KindPlatformShareUnsupported, Err: err}
	}
	cmd := exec.CommandContext(ctx, binary, args[1:]...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, "share", args[0], detail, err)
	}
	return nil
}

// ShareChannel stages the artifact and hands it to the share facility.
type ShareChannel struct {
	facility   ShareFacility
	stagingDir string
	enabled    bool
}

// NewShareChannel returns the share channel. It only runs when enabled,
// which the orchestrator sets for the share delivery mode.
func NewShareChannel(facility ShareFacility, stagingDir string, enabled bool) *ShareChannel {
	return &ShareChannel{facility: facility, stagingDir: stagingDir, enabled: enabled}
}

func (c *ShareChannel) Name() string { return ChannelShare }

func (c *ShareChannel) Accepts(payload *Payload, _ *StepResult) bool {
	return c.enabled && c.facility != nil && c.facility.CanShare(payload.ContentType)
}

func (c *ShareChannel) Send(ctx context.Context, payload *Payload) (Receipt, error) {
	dir := c.stagingDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Receipt{}, &ChannelError{Channel: ChannelShare, Kind: KindGeneric, Err: fmt.Errorf("create staging dir: %w", err)}
	}
	path := filepath.Join(dir, payload.FileName)
	if err := fileutil.WriteFileVerified(path, payload.Data, 0o644); err != nil {
		return Receipt{}, &ChannelError{Channel: ChannelShare, Kind: KindGeneric, Err: fmt.Errorf("stage file: %w", err)}
	}
	err := c.facility.Share(ctx, ShareRequest{Title: payload.Title, Text: payload.Text, FilePath: path})
	if err != nil {
		_ = os.Remove(path)
		return Receipt{}, channelError(ChannelShare, err)
	}
	return Receipt{Status: StatusSent, Path: path}, nil
}
