package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vidpipe/internal/config"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
)

// Bucket names a logical file area.
type Bucket string

const (
	Uploads   Bucket = "uploads"
	Processed Bucket = "processed"
	Overlays  Bucket = "overlays"
	Fonts     Bucket = "fonts"
)

// Buckets resolves filenames inside the configured bucket directories.
type Buckets struct {
	dirs map[Bucket]string
}

// New builds Buckets from the configured paths.
func New(cfg *config.Config) *Buckets {
	return &Buckets{dirs: map[Bucket]string{
		Uploads:   cfg.Paths.UploadsDir,
		Processed: cfg.Paths.ProcessedDir,
		Overlays:  cfg.Paths.OverlaysDir,
		Fonts:     cfg.Paths.FontsDir,
	}}
}

// Dir returns the directory backing bucket.
func (b *Buckets) Dir(bucket Bucket) string {
	return b.dirs[bucket]
}

// Path joins name onto the bucket directory. Names must be a single path
// element.
func (b *Buckets) Path(bucket Bucket, name string) (string, error) {
	dir, ok := b.dirs[bucket]
	if !ok || dir == "" {
		return "", services.Wrap(services.ErrConfiguration, "storage", "path", fmt.Sprintf("unknown bucket %q", bucket), nil)
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", services.Wrap(services.ErrValidation, "storage", "path", fmt.Sprintf("invalid filename %q", name), nil)
	}
	return filepath.Join(dir, name), nil
}

// Exists reports whether name is a regular file in bucket.
func (b *Buckets) Exists(bucket Bucket, name string) bool {
	path, err := b.Path(bucket, name)
	if err != nil {
		return false
	}
	return FileExists(path)
}

// FileExists reports whether path is an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SourcePath returns where a video's bytes live: uploads for root videos,
// processed outputs for derived ones.
func (b *Buckets) SourcePath(video *queue.Video) (string, error) {
	if video == nil {
		return "", services.Wrap(services.ErrNotFound, "storage", "source path", "video record missing", nil)
	}
	bucket := Uploads
	if video.IsDerived() {
		bucket = Processed
	}
	return b.Path(bucket, video.Filename)
}

// ResolveFont returns the font file for name when it exists in the fonts
// bucket. A bare name without extension also matches name+".ttf".
func (b *Buckets) ResolveFont(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = append(candidates, name+".ttf", name+".otf")
	}
	for _, candidate := range candidates {
		path, err := b.Path(Fonts, candidate)
		if err != nil {
			return "", false
		}
		if FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrIO, "storage", "remove", path, err)
	}
	return nil
}
