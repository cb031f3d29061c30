package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SaveDir    string `toml:"save_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	LockDir    string `toml:"lock_dir"`
}

// Capture contains device and recorder settings.
type Capture struct {
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	Platform           string `toml:"platform"`
	VideoDevice        string `toml:"video_device"`
	AudioDevice        string `toml:"audio_device"`
	AudioBackend       string `toml:"audio_backend"`
	FlushIntervalMS    int    `toml:"flush_interval_ms"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	VideoBitrateKbps   int    `toml:"video_bitrate_kbps"`
	AudioBitrateKbps   int    `toml:"audio_bitrate_kbps"`
	StopGraceMS        int    `toml:"stop_grace_ms"`
}

// Delivery contains orchestrator settings shared by every channel.
type Delivery struct {
	Mode                  string `toml:"mode"`
	DefaultOutcome        string `toml:"default_outcome"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxUploadMB           int    `toml:"max_upload_mb"`
	CaptionLimit          int    `toml:"caption_limit"`
	ResetDelayMS          int    `toml:"reset_delay_ms"`
	FilePrefix            string `toml:"file_prefix"`
	IdentifierField       string `toml:"identifier_field"`
	ManualShareURL        string `toml:"manual_share_url"`
	LocalFallback         bool   `toml:"local_fallback"`
	Header                string `toml:"header"`
	Footer                string `toml:"footer"`
}

// Telegram contains Bot API endpoint settings.
type Telegram struct {
	BaseURL string `toml:"base_url"`
}

// Route maps one outcome classification to a bot destination.
type Route struct {
	Name     string `toml:"name"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// Share contains configuration for the host share facility.
type Share struct {
	Command []string `toml:"command"`
	Accept  []string `toml:"accept"`
	Title   string   `toml:"title"`
}

// Location contains configuration for the best-effort location enricher.
type Location struct {
	Provider       string  `toml:"provider"`
	URL            string  `toml:"url"`
	AccuracyMeters float64 `toml:"accuracy_meters"`
	Latitude       float64 `toml:"latitude"`
	Longitude      float64 `toml:"longitude"`
	TimeoutMS      int     `toml:"timeout_ms"`
	MaxAgeMS       int     `toml:"max_age_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Sent           bool   `toml:"sent"`
	Failed         bool   `toml:"failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for leadcast.
//
// Configuration sections by subsystem:
//   - Paths: save, staging, log and lock directories
//   - Capture: ffmpeg binary, devices, flush interval and bitrates
//   - Delivery: channel mode, limits, file naming and manual share link
//   - Telegram: Bot API base URL
//   - Routes: outcome tag to bot token and chat id
//   - Share: host share command
//   - Location: enrichment provider and timings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths            `toml:"paths"`
	Capture       Capture          `toml:"capture"`
	Delivery      Delivery         `toml:"delivery"`
	Telegram      Telegram         `toml:"telegram"`
	Routes        map[string]Route `toml:"routes"`
	Share         Share            `toml:"share"`
	Location      Location         `toml:"location"`
	Notifications Notifications    `toml:"notifications"`
	Logging       Logging          `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("leadcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the capture and delivery flow
// writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SaveDir, c.Paths.StagingDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for capture.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Capture.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// Outcomes returns the configured outcome tags in stable order.
func (c *Config) Outcomes() []string {
	out := make([]string, 0, len(c.Routes))
	for key := range c.Routes {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
