package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/browser"

	"leadcast/internal/fileutil"
	"leadcast/internal/logging"
)

// DefaultManualShareURL opens a Telegram share sheet carrying only text.
const DefaultManualShareURL = "https://t.me/share/url?url=&text={text}"

// LocalSaveChannel writes the artifact to the save directory and opens a
// manual share link so the operator can attach the file by hand.
type LocalSaveChannel struct {
	saveDir  string
	shareURL string
	open     func(string) error
	logger   *slog.Logger
}

// LocalSaveOption customizes the local save channel.
type LocalSaveOption func(*LocalSaveChannel)

// WithURLOpener replaces the system browser launcher.
func WithURLOpener(open func(string) error) LocalSaveOption {
	return func(c *LocalSaveChannel) {
		c.open = open
	}
}

// NewLocalSaveChannel returns the final fallback channel. An empty shareURL
// disables the manual link.
func NewLocalSaveChannel(saveDir, shareURL string, logger *slog.Logger, opts ...LocalSaveOption) *LocalSaveChannel {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &LocalSaveChannel{
		saveDir:  saveDir,
		shareURL: strings.TrimSpace(shareURL),
		open:     browser.OpenURL,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LocalSaveChannel) Name() string { return ChannelLocalSave }

func (c *LocalSaveChannel) Accepts(*Payload, *StepResult) bool { return c.saveDir != "" }

func (c *LocalSaveChannel) Send(ctx context.Context, payload *Payload) (Receipt, error) {
	if err := os.MkdirAll(c.saveDir, 0o755); err != nil {
		return Receipt{}, &ChannelError{Channel: ChannelLocalSave, Kind: KindGeneric, Err: fmt.Errorf("create save dir: %w", err)}
	}
	path := filepath.Join(c.saveDir, payload.FileName)
	if err := fileutil.WriteFileVerified(path, payload.Data, 0o644); err != nil {
		return Receipt{}, &ChannelError{Channel: ChannelLocalSave, Kind: KindGeneric, Err: fmt.Errorf("save file: %w", err)}
	}

	receipt := Receipt{Status: StatusManual, Path: path}
	if c.shareURL == "" {
		return receipt, nil
	}
	link := ManualShareLink(c.shareURL, payload.Text)
	receipt.Link = link
	if c.open != nil {
		if err := c.open(link); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "manual share link not opened", "manual_link_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "open the link printed by leadcast and attach the saved file"),
				logging.String(logging.FieldImpact, "file saved locally; sharing needs a manual step"),
			)
		}
	}
	return receipt, nil
}

// ManualShareLink expands {text} in template with the URL-encoded text.
func ManualShareLink(template, text string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return strings.ReplaceAll(template, "{text}", encoded)
}
