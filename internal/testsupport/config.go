package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every bucket directory is created so stores and storage can open at once.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfgVal.Paths.ProcessedDir = filepath.Join(base, "processed")
	cfgVal.Paths.OverlaysDir = filepath.Join(base, "overlays_media")
	cfgVal.Paths.FontsDir = filepath.Join(base, "fonts")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Workflow.QueuePollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides the worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithStubbedBinaries writes stub ffmpeg and ffprobe executables into the
// test bin directory and points the config at them. See MediaStub for the
// file format the stubs understand.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		ffmpeg := filepath.Join(binDir, "ffmpeg")
		if err := os.WriteFile(ffmpeg, []byte(ffmpegStub), 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}
		ffprobe := filepath.Join(binDir, "ffprobe")
		if err := os.WriteFile(ffprobe, []byte(ffprobeStub), 0o755); err != nil {
			b.t.Fatalf("write ffprobe stub: %v", err)
		}
		b.cfg.FFmpeg.FFmpegBinary = ffmpeg
		b.cfg.FFmpeg.FFprobeBinary = ffprobe
	}
}

// WithFailingBinary writes a stub that prints to stderr and exits 1, and
// configures it as the ffmpeg or ffprobe binary depending on name.
func WithFailingBinary(name string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, name+"-failing")
		script := "#!/bin/sh\necho \"" + name + ": simulated failure\" >&2\nexit 1\n"
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write failing stub %s: %v", name, err)
		}
		switch name {
		case "ffmpeg":
			b.cfg.FFmpeg.FFmpegBinary = target
		case "ffprobe":
			b.cfg.FFmpeg.FFprobeBinary = target
		default:
			b.t.Fatalf("unsupported failing binary %q", name)
		}
	}
}

// WithGatedFFmpeg configures an ffmpeg that records its start and then
// blocks until ReleaseFFmpeg is called before behaving like the regular stub.
func WithGatedFFmpeg() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		inner := filepath.Join(binDir, "ffmpeg-stub")
		if err := os.WriteFile(inner, []byte(ffmpegStub), 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}
		script := "#!/bin/sh\n" +
			"touch \"$0.started\"\n" +
			"while [ ! -f \"$0.release\" ]; do sleep 0.05; done\n" +
			"exec \"" + inner + "\" \"$@\"\n"
		gated := filepath.Join(binDir, "ffmpeg-gated")
		if err := os.WriteFile(gated, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write gated ffmpeg: %v", err)
		}
		b.cfg.FFmpeg.FFmpegBinary = gated
	}
}

// WaitForFFmpegStart blocks until a gated ffmpeg has been invoked.
func WaitForFFmpegStart(t *testing.T, cfg *config.Config, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(cfg.FFmpeg.FFmpegBinary + ".started"); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ffmpeg was not started within %s", timeout)
}

// ReleaseFFmpeg lets a gated ffmpeg continue.
func ReleaseFFmpeg(t *testing.T, cfg *config.Config) {
	t.Helper()
	if err := os.WriteFile(cfg.FFmpeg.FFmpegBinary+".release", nil, 0o644); err != nil {
		t.Fatalf("release ffmpeg: %v", err)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// ArgsLog returns the file the ffmpeg stub appends each invocation to.
func ArgsLog(cfg *config.Config) string {
	return cfg.FFmpeg.FFmpegBinary + ".args"
}
