package preflight

import (
	"context"

	"vidpipe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// MinFreeBytes is the free space below which the processed bucket check fails.
const MinFreeBytes = 512 << 20

// RunAll executes the bucket directory checks plus a free-space check on
// the processed bucket.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckBuckets(ctx, cfg)
	return append(results, CheckFreeSpace("Processed free space", cfg.Paths.ProcessedDir, MinFreeBytes))
}

// CheckBuckets verifies the data directory and every storage bucket are
// usable directories.
func CheckBuckets(_ context.Context, cfg *config.Config) []Result {
	dirs := []struct{ name, path string }{
		{"Data directory", cfg.Paths.DataDir},
		{"Uploads directory", cfg.Paths.UploadsDir},
		{"Processed directory", cfg.Paths.ProcessedDir},
		{"Overlays directory", cfg.Paths.OverlaysDir},
		{"Fonts directory", cfg.Paths.FontsDir},
	}
	results := make([]Result, 0, len(dirs)+1)
	for _, dir := range dirs {
		results = append(results, CheckDirectoryAccess(dir.name, dir.path))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
