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
	c.normalizeAPI()
	c.normalizeFFmpeg()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.uploads_dir", &c.Paths.UploadsDir, defaultUploadsDir},
		{"paths.processed_dir", &c.Paths.ProcessedDir, defaultProcessedDir},
		{"paths.overlays_dir", &c.Paths.OverlaysDir, defaultOverlaysDir},
		{"paths.fonts_dir", &c.Paths.FontsDir, defaultFontsDir},
	}
	for _, f := range fields {
		value := strings.TrimSpace(*f.value)
		if value == "" {
			value = f.fallback
		}
		expanded, err := expandPath(value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", f.name, err)
		}
		*f.value = expanded
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if value, ok := os.LookupEnv("VIDPIPE_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.API.Bind = value
	}
	if value, ok := os.LookupEnv("VIDPIPE_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.API.Token = value
	}
	if value, ok := os.LookupEnv("VIDPIPE_JWT_SECRET"); ok && strings.TrimSpace(value) != "" {
		c.API.JWTSecret = value
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.API.JWTSecret = strings.TrimSpace(c.API.JWTSecret)
	if c.API.MaxUploadMB <= 0 {
		c.API.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	c.FFmpeg.FontColor = strings.TrimSpace(c.FFmpeg.FontColor)
	if c.FFmpeg.FontColor == "" {
		c.FFmpeg.FontColor = defaultFontColor
	}
	if c.FFmpeg.FontSize == 0 {
		c.FFmpeg.FontSize = defaultFontSize
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval == 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
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

func (c *Config) normalizeNotifications() {
	if c.Notifications.AMQPURL == "" {
		if value, ok := os.LookupEnv("VIDPIPE_AMQP_URL"); ok {
			c.Notifications.AMQPURL = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.AMQPURL = strings.TrimSpace(c.Notifications.AMQPURL)
	c.Notifications.AMQPExchange = strings.TrimSpace(c.Notifications.AMQPExchange)
	if c.Notifications.AMQPExchange == "" {
		c.Notifications.AMQPExchange = defaultNotifyAMQPExchange
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
