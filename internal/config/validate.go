package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	buckets := map[string]string{
		"paths.uploads_dir":   c.Paths.UploadsDir,
		"paths.processed_dir": c.Paths.ProcessedDir,
		"paths.overlays_dir":  c.Paths.OverlaysDir,
		"paths.fonts_dir":     c.Paths.FontsDir,
	}
	seen := make(map[string]string, len(buckets))
	for _, key := range []string{"paths.uploads_dir", "paths.processed_dir", "paths.overlays_dir", "paths.fonts_dir"} {
		dir := buckets[key]
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if other, ok := seen[dir]; ok {
			return fmt.Errorf("%s and %s must be different directories", other, key)
		}
		seen[dir] = key
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind %q is not a host:port address: %w", c.API.Bind, err)
	}
	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < 16 {
		return errors.New("api.jwt_secret must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.FontSize < 0 {
		return errors.New("ffmpeg.font_size must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_size":          c.Workflow.QueueSize,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console, json, or auto)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.AMQPURL != "" &&
		!strings.HasPrefix(c.Notifications.AMQPURL, "amqp://") &&
		!strings.HasPrefix(c.Notifications.AMQPURL, "amqps://") {
		return errors.New("notifications.amqp_url must use the amqp:// or amqps:// scheme")
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
