// Package ffprobe wraps ffprobe JSON output for the media prober.
//
// Inspect runs the binary and decodes streams and format metadata. Probe
// and HasAudio are the two queries the worker engine needs: container
// duration and size for committed videos, and audio-stream presence for
// secondary overlay inputs. Both report failures as services.ErrMetadata.
//
// Calls block until ffprobe exits.
package ffprobe
