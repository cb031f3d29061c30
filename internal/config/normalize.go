package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeDelivery()
	c.normalizeRoutes()
	c.normalizeShare()
	c.normalizeLocation()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SaveDir, err = expandPath(c.Paths.SaveDir); err != nil {
		return fmt.Errorf("paths.save_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	if c.Capture.FFmpegBinary == "" {
		c.Capture.FFmpegBinary = "ffmpeg"
	}
	c.Capture.Platform = strings.ToLower(strings.TrimSpace(c.Capture.Platform))
	c.Capture.VideoDevice = strings.TrimSpace(c.Capture.VideoDevice)
	if c.Capture.VideoDevice == "" {
		c.Capture.VideoDevice = defaultVideoDevice
	}
	c.Capture.AudioDevice = strings.TrimSpace(c.Capture.AudioDevice)
	if c.Capture.AudioDevice == "" {
		c.Capture.AudioDevice = defaultAudioDevice
	}
	c.Capture.AudioBackend = strings.ToLower(strings.TrimSpace(c.Capture.AudioBackend))
	if c.Capture.AudioBackend == "" {
		c.Capture.AudioBackend = defaultAudioBackend
	}
	if c.Capture.StopGraceMS <= 0 {
		c.Capture.StopGraceMS = defaultStopGraceMS
	}
}

func (c *Config) normalizeDelivery() {
	c.Delivery.Mode = strings.ToLower(strings.TrimSpace(c.Delivery.Mode))
	if c.Delivery.Mode == "" {
		c.Delivery.Mode = defaultDeliveryMode
	}
	c.Delivery.DefaultOutcome = strings.ToLower(strings.TrimSpace(c.Delivery.DefaultOutcome))
	if c.Delivery.CaptionLimit <= 0 {
		c.Delivery.CaptionLimit = defaultCaptionLimit
	}
	if c.Delivery.ResetDelayMS < 0 {
		c.Delivery.ResetDelayMS = 0
	}
	c.Delivery.FilePrefix = strings.TrimSpace(c.Delivery.FilePrefix)
	if c.Delivery.FilePrefix == "" {
		c.Delivery.FilePrefix = defaultFilePrefix
	}
	c.Delivery.IdentifierField = strings.TrimSpace(c.Delivery.IdentifierField)
	if c.Delivery.IdentifierField == "" {
		c.Delivery.IdentifierField = defaultIdentifierField
	}
	c.Delivery.ManualShareURL = strings.TrimSpace(c.Delivery.ManualShareURL)
	if c.Delivery.ManualShareURL == "" {
		c.Delivery.ManualShareURL = defaultManualShareURL
	}
	c.Telegram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.BaseURL), "/")
	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = defaultTelegramBaseURL
	}
}

// normalizeRoutes lowercases outcome tags and fills bot tokens from
// LEADCAST_<OUTCOME>_BOT_TOKEN when the file leaves them blank.
func (c *Config) normalizeRoutes() {
	if len(c.Routes) == 0 {
		c.Routes = map[string]Route{}
		return
	}
	routes := make(map[string]Route, len(c.Routes))
	for outcome, route := range c.Routes {
		key := strings.ToLower(strings.TrimSpace(outcome))
		if key == "" {
			continue
		}
		route.Name = strings.TrimSpace(route.Name)
		if route.Name == "" {
			route.Name = key
		}
		route.ChatID = strings.TrimSpace(route.ChatID)
		route.BotToken = strings.TrimSpace(route.BotToken)
		if route.BotToken == "" {
			if value, ok := os.LookupEnv(RouteTokenEnv(key)); ok {
				route.BotToken = strings.TrimSpace(value)
			}
		}
		routes[key] = route
	}
	c.Routes = routes
}

// RouteTokenEnv returns the environment variable consulted for a route's bot token.
func RouteTokenEnv(outcome string) string {
	name := strings.ToUpper(strings.TrimSpace(outcome))
	name = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	return routeTokenEnvPrefix + name + routeTokenEnvSuffix
}

func (c *Config) normalizeShare() {
	command := make([]string, 0, len(c.Share.Command))
	for _, arg := range c.Share.Command {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	c.Share.Command = command
	accept := make([]string, 0, len(c.Share.Accept))
	for _, prefix := range c.Share.Accept {
		if trimmed := strings.ToLower(strings.TrimSpace(prefix)); trimmed != "" {
			accept = append(accept, trimmed)
		}
	}
	if len(accept) == 0 {
		accept = []string{defaultShareAcceptedPrefix}
	}
	c.Share.Accept = accept
	c.Share.Title = strings.TrimSpace(c.Share.Title)
	if c.Share.Title == "" {
		c.Share.Title = defaultShareTitle
	}
}

func (c *Config) normalizeLocation() {
	c.Location.Provider = strings.ToLower(strings.TrimSpace(c.Location.Provider))
	if c.Location.Provider == "" {
		c.Location.Provider = defaultLocationProvider
	}
	c.Location.URL = strings.TrimSpace(c.Location.URL)
	if c.Location.URL == "" {
		c.Location.URL = defaultLocationURL
	}
	if c.Location.AccuracyMeters <= 0 {
		c.Location.AccuracyMeters = defaultLocationAccuracy
	}
	if c.Location.TimeoutMS <= 0 {
		c.Location.TimeoutMS = defaultLocationTimeoutMS
	}
	if c.Location.MaxAgeMS < 0 {
		c.Location.MaxAgeMS = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LEADCAST_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
