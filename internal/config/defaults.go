package config

const (
	defaultDataDir = "~/.local/share/adreact"
	defaultLogDir  = "~/.local/share/adreact/logs"
	defaultAPIBind = "127.0.0.1:7523"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultFallbackLimit      = 4

	defaultReadinessTimeoutSeconds   = 6
	defaultFullscreenFallbackMillis  = 2000
	defaultSettleDelayMillis         = 300
	defaultStatusPollIntervalSeconds = 4

	defaultFFmpegBinary = "ffmpeg"
	defaultVideoDevice  = "/dev/video0"

	defaultNtfyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			PollInterval:       defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			FallbackLimit:      defaultFallbackLimit,
		},
		Recorder: Recorder{
			ReadinessTimeoutSeconds:   defaultReadinessTimeoutSeconds,
			FullscreenFallbackMillis:  defaultFullscreenFallbackMillis,
			SettleDelayMillis:         defaultSettleDelayMillis,
			StatusPollIntervalSeconds: defaultStatusPollIntervalSeconds,
		},
		Capture: Capture{
			FFmpegBinary: defaultFFmpegBinary,
			VideoDevice:  defaultVideoDevice,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			JobEvents:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
