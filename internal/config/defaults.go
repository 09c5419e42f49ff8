package config

const (
	defaultConfigPath           = "~/.config/vidpipe/config.toml"
	defaultDataDir              = "~/.local/share/vidpipe"
	defaultLogDir               = "~/.local/share/vidpipe/logs"
	defaultUploadsDir           = "~/.local/share/vidpipe/uploads"
	defaultProcessedDir         = "~/.local/share/vidpipe/processed"
	defaultOverlaysDir          = "~/.local/share/vidpipe/overlays_media"
	defaultFontsDir             = "~/.local/share/vidpipe/fonts"
	defaultAPIBind              = "127.0.0.1:7490"
	defaultMaxUploadMB          = 2048
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultFontSize             = 36
	defaultFontColor            = "white"
	defaultWorkers              = 2
	defaultQueueSize            = 16
	defaultQueuePollInterval    = 5
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyRequestTimeout = 10
	defaultNotifyAMQPExchange   = "vidpipe.jobs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			UploadsDir:   defaultUploadsDir,
			ProcessedDir: defaultProcessedDir,
			OverlaysDir:  defaultOverlaysDir,
			FontsDir:     defaultFontsDir,
		},
		API: API{
			Bind:        defaultAPIBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			FontSize:      defaultFontSize,
			FontColor:     defaultFontColor,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			QueueSize:         defaultQueueSize,
			QueuePollInterval: defaultQueuePollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			AMQPExchange:   defaultNotifyAMQPExchange,
			OnDone:         true,
			OnFailed:       true,
		},
	}
}
