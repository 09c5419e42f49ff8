package workflow

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"vidpipe/internal/services"
)

const stderrTailLines = 12

// runFFmpeg executes binary with args. A non-zero exit surfaces the tail of
// stderr in the returned error.
func runFFmpeg(ctx context.Context, binary string, args []string) error {
	if strings.TrimSpace(binary) == "" {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "run", "ffmpeg binary not configured", nil)
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := tail(stderr.String(), stderrTailLines)
		if detail == "" {
			detail = "ffmpeg failed"
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", detail, err)
	}
	return nil
}

func tail(output string, lines int) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "; ")
}
