package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidpipe/internal/logging"
	"vidpipe/internal/services"
)

const partialPrefix = ".partial-"

// ErrTooLarge is returned when staged content exceeds the caller's limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// Partial is content written to a bucket under a temporary name.
type Partial struct {
	Path   string
	Size   int64
	bucket Bucket
}

// Stage copies r into a new partial file in bucket. A positive limit caps
// the number of bytes accepted; exceeding it removes the partial and
// returns an ErrValidation error wrapping ErrTooLarge.
func (b *Buckets) Stage(bucket Bucket, r io.Reader, limit int64) (*Partial, error) {
	path, err := b.Path(bucket, partialPrefix+uuid.NewString())
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "storage", "stage", "create partial file", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrIO, "storage", "stage", "write partial file", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrIO, "storage", "stage", "close partial file", closeErr)
	case limit > 0 && written > limit:
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrValidation, "storage", "stage",
			fmt.Sprintf("more than %d bytes", limit), ErrTooLarge)
	}
	return &Partial{Path: path, Size: written, bucket: bucket}, nil
}

// Promote renames the partial into its final name in the same bucket and
// returns the final path.
func (b *Buckets) Promote(p *Partial, name string) (string, error) {
	if p == nil {
		return "", services.Wrap(services.ErrValidation, "storage", "promote", "nil partial", nil)
	}
	final, err := b.Path(p.bucket, name)
	if err != nil {
		return "", err
	}
	if err := os.Rename(p.Path, final); err != nil {
		return "", services.Wrap(services.ErrIO, "storage", "promote", name, err)
	}
	p.Path = final
	return final, nil
}

// Discard removes a partial that was never promoted.
func (p *Partial) Discard() {
	if p == nil || !strings.HasPrefix(filepath.Base(p.Path), partialPrefix) {
		return
	}
	_ = os.Remove(p.Path)
}

// CleanStalePartials removes partial files older than maxAge from every
// bucket. It returns the removed paths.
func (b *Buckets) CleanStalePartials(ctx context.Context, maxAge time.Duration, logger *slog.Logger) []string {
	if logger == nil {
		logger = logging.NewNop()
	}
	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, bucket := range []Bucket{Uploads, Processed, Overlays} {
		if ctx.Err() != nil {
			break
		}
		dir := b.Dir(bucket)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to scan bucket for partial files",
					logging.String("bucket", string(bucket)),
					logging.Error(err),
					logging.String(logging.FieldEventType, "partial_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check bucket directory permissions"),
				)
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), partialPrefix) {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				logger.Warn("failed to remove stale partial file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "partial_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check bucket directory permissions"),
				)
				continue
			}
			removed = append(removed, path)
			logger.Info("removed stale partial file",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "partial_cleanup"),
			)
		}
	}
	return removed
}
