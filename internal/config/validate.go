package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Routes with missing
// credentials are reported here rather than at send time so the operator
// finds out before recording.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateRoutes(); err != nil {
		return err
	}
	if err := c.validateLocation(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.flush_interval_ms":    c.Capture.FlushIntervalMS,
		"capture.max_duration_seconds": c.Capture.MaxDurationSeconds,
		"capture.video_bitrate_kbps":   c.Capture.VideoBitrateKbps,
		"capture.audio_bitrate_kbps":   c.Capture.AudioBitrateKbps,
	}); err != nil {
		return err
	}
	switch c.Capture.Platform {
	case "", "linux", "darwin", "windows", "mobile":
	default:
		return fmt.Errorf("capture.platform %q must be one of linux, darwin, windows, mobile", c.Capture.Platform)
	}
	switch c.Capture.AudioBackend {
	case "pulse", "alsa", "none":
	default:
		return fmt.Errorf("capture.audio_backend %q must be one of pulse, alsa, none", c.Capture.AudioBackend)
	}
	return nil
}

func (c *Config) validateDelivery() error {
	switch c.Delivery.Mode {
	case DeliveryModeBot, DeliveryModeShare:
	default:
		return fmt.Errorf("delivery.mode %q must be %q or %q", c.Delivery.Mode, DeliveryModeBot, DeliveryModeShare)
	}
	if err := ensurePositiveMap(map[string]int{
		"delivery.request_timeout_seconds": c.Delivery.RequestTimeoutSeconds,
		"delivery.max_upload_mb":           c.Delivery.MaxUploadMB,
	}); err != nil {
		return err
	}
	if !strings.Contains(c.Delivery.ManualShareURL, "{text}") {
		return errors.New("delivery.manual_share_url must contain the {text} placeholder")
	}
	if c.Delivery.Mode == DeliveryModeShare && len(c.Share.Command) == 0 && !c.Delivery.LocalFallback {
		return errors.New("delivery.mode share needs share.command or delivery.local_fallback")
	}
	return nil
}

func (c *Config) validateRoutes() error {
	for outcome, route := range c.Routes {
		if route.ChatID == "" {
			return fmt.Errorf("routes.%s.chat_id must be set", outcome)
		}
		if c.Delivery.Mode == DeliveryModeBot && route.BotToken == "" {
			return fmt.Errorf("routes.%s.bot_token must be set (or export %s)", outcome, RouteTokenEnv(outcome))
		}
	}
	if c.Delivery.DefaultOutcome != "" {
		if _, ok := c.Routes[c.Delivery.DefaultOutcome]; !ok {
			return fmt.Errorf("delivery.default_outcome %q has no matching [routes.%s] section", c.Delivery.DefaultOutcome, c.Delivery.DefaultOutcome)
		}
	}
	return nil
}

func (c *Config) validateLocation() error {
	switch c.Location.Provider {
	case LocationProviderIPGeo, LocationProviderNone:
	case LocationProviderStatic:
		if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
			return errors.New("location.latitude must be between -90 and 90")
		}
		if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
			return errors.New("location.longitude must be between -180 and 180")
		}
	default:
		return fmt.Errorf("location.provider %q must be one of ipgeo, static, none", c.Location.Provider)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
