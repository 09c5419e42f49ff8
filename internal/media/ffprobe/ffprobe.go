package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"vidpipe/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Metadata is the subset of probe output recorded on a video.
type Metadata struct {
	Duration float64
	Size     int64
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
// Launch failures and non-zero exits are tagged services.ErrExternalTool.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "empty path", nil)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", strings.TrimSpace(stderr.String()), err)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, services.Wrap(services.ErrMetadata, "ffprobe", "parse", "decode json output", err)
	}
	return result, nil
}

// Probe returns the duration and size of the file at path. Any failure,
// including a missing duration field, is reported as services.ErrMetadata.
func Probe(ctx context.Context, binary string, path string) (Metadata, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return Metadata{}, asMetadataError(path, err)
	}
	duration := result.DurationSeconds()
	if strings.TrimSpace(result.Format.Duration) == "" || math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return Metadata{}, services.Wrap(services.ErrMetadata, "ffprobe", "probe",
			fmt.Sprintf("%s: unusable duration %q in format section", path, result.Format.Duration), nil)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(result.Format.Size), 10, 64)
	if err != nil || size < 0 {
		return Metadata{}, services.Wrap(services.ErrMetadata, "ffprobe", "probe",
			fmt.Sprintf("%s: unusable size %q in format section", path, result.Format.Size), nil)
	}
	return Metadata{Duration: duration, Size: size}, nil
}

// HasAudio reports whether the file at path carries at least one audio stream.
func HasAudio(ctx context.Context, binary string, path string) (bool, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return false, asMetadataError(path, err)
	}
	return result.AudioStreamCount() > 0, nil
}

func asMetadataError(path string, err error) error {
	if errors.Is(err, services.ErrMetadata) {
		return err
	}
	return services.Wrap(services.ErrMetadata, "ffprobe", "probe", path, err)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
