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
	c.normalizeQueue()
	c.normalizeRecorder()
	c.normalizeCapture()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.AdPath, err = expandPath(c.Paths.AdPath); err != nil {
		return fmt.Errorf("paths.ad_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = defaultQueuePollInterval
	}
	if c.Queue.ErrorRetryInterval <= 0 {
		c.Queue.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Queue.FallbackLimit <= 0 {
		c.Queue.FallbackLimit = defaultFallbackLimit
	}
}

func (c *Config) normalizeRecorder() {
	if c.Recorder.ReadinessTimeoutSeconds <= 0 {
		c.Recorder.ReadinessTimeoutSeconds = defaultReadinessTimeoutSeconds
	}
	if c.Recorder.FullscreenFallbackMillis <= 0 {
		c.Recorder.FullscreenFallbackMillis = defaultFullscreenFallbackMillis
	}
	if c.Recorder.SettleDelayMillis < 0 {
		c.Recorder.SettleDelayMillis = defaultSettleDelayMillis
	}
	if c.Recorder.StatusPollIntervalSeconds <= 0 {
		c.Recorder.StatusPollIntervalSeconds = defaultStatusPollIntervalSeconds
	}
}

func (c *Config) normalizeCapture() {
	if strings.TrimSpace(c.Capture.FFmpegBinary) == "" {
		c.Capture.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Capture.VideoDevice) == "" {
		c.Capture.VideoDevice = defaultVideoDevice
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("ADREACT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
