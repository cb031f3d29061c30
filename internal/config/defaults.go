package config

const (
	defaultConfigPath          = "~/.config/leadcast/config.toml"
	defaultSaveDir             = "~/Videos/leadcast"
	defaultStagingDir          = "~/.local/share/leadcast/staging"
	defaultLogDir              = "~/.local/share/leadcast/logs"
	defaultLockDir             = "~/.local/share/leadcast/locks"
	defaultVideoDevice         = "/dev/video0"
	defaultAudioDevice         = "default"
	defaultAudioBackend        = "pulse"
	defaultFlushIntervalMS     = 1000
	defaultMaxDurationSeconds  = 120
	defaultVideoBitrateKbps    = 2500
	defaultAudioBitrateKbps    = 128
	defaultStopGraceMS         = 1500
	defaultDeliveryMode        = "bot"
	defaultRequestTimeout      = 60
	defaultMaxUploadMB         = 50
	defaultCaptionLimit        = 1024
	defaultResetDelayMS        = 2000
	defaultFilePrefix          = "LEAD"
	defaultIdentifierField     = "childName"
	defaultManualShareURL      = "https://t.me/share/url?url=&text={text}"
	defaultHeader              = "🎯 NEW LEAD"
	defaultFooter              = "✨ Sent with leadcast"
	defaultTelegramBaseURL     = "https://api.telegram.org"
	defaultShareTitle          = "New lead"
	defaultLocationProvider    = "ipgeo"
	defaultLocationURL         = "https://ipapi.co/json/"
	defaultLocationAccuracy    = 5000
	defaultLocationTimeoutMS   = 10000
	defaultLocationMaxAgeMS    = 60000
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	routeTokenEnvPrefix        = "LEADCAST_"
	routeTokenEnvSuffix        = "_BOT_TOKEN"
	DeliveryModeBot            = "bot"
	DeliveryModeShare          = "share"
	LocationProviderIPGeo      = "ipgeo"
	LocationProviderStatic     = "static"
	LocationProviderNone       = "none"
	defaultShareAcceptedPrefix = "video/"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SaveDir:    defaultSaveDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			LockDir:    defaultLockDir,
		},
		Capture: Capture{
			FFmpegBinary:       "ffmpeg",
			VideoDevice:        defaultVideoDevice,
			AudioDevice:        defaultAudioDevice,
			AudioBackend:       defaultAudioBackend,
			FlushIntervalMS:    defaultFlushIntervalMS,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			VideoBitrateKbps:   defaultVideoBitrateKbps,
			AudioBitrateKbps:   defaultAudioBitrateKbps,
			StopGraceMS:        defaultStopGraceMS,
		},
		Delivery: Delivery{
			Mode:                  defaultDeliveryMode,
			RequestTimeoutSeconds: defaultRequestTimeout,
			MaxUploadMB:           defaultMaxUploadMB,
			CaptionLimit:          defaultCaptionLimit,
			ResetDelayMS:          defaultResetDelayMS,
			FilePrefix:            defaultFilePrefix,
			IdentifierField:       defaultIdentifierField,
			ManualShareURL:        defaultManualShareURL,
			LocalFallback:         true,
			Header:                defaultHeader,
			Footer:                defaultFooter,
		},
		Telegram: Telegram{
			BaseURL: defaultTelegramBaseURL,
		},
		Routes: map[string]Route{},
		Share: Share{
			Accept: []string{defaultShareAcceptedPrefix},
			Title:  defaultShareTitle,
		},
		Location: Location{
			Provider:       defaultLocationProvider,
			URL:            defaultLocationURL,
			AccuracyMeters: defaultLocationAccuracy,
			TimeoutMS:      defaultLocationTimeoutMS,
			MaxAgeMS:       defaultLocationMaxAgeMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Sent:           true,
			Failed:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
