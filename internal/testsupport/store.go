package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRootVideo writes a stub media file into the uploads bucket and runs an
// upload job for it through claim and commit, so tests get a root video
// without the worker engine.
func SeedRootVideo(t testing.TB, cfg *config.Config, store *queue.Store, filename string, media MediaStub) *queue.Video {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.UploadsDir, filename)
	WriteMedia(t, path, media)

	job, err := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload, SourceFile: filename}, nil, nil)
	if err != nil {
		t.Fatalf("create upload job: %v", err)
	}
	if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
		t.Fatalf("claim upload job: ok=%v err=%v", ok, err)
	}
	video, err := store.CommitVideo(ctx, job.ID, queue.NewVideo{Filename: filename, Size: int64(len(media.Contents())), Duration: media.Duration}, path)
	if err != nil {
		t.Fatalf("commit upload job: %v", err)
	}
	return video
}

// WaitForStatus polls until the job reaches want or the timeout elapses.
func WaitForStatus(t testing.TB, store *queue.Store, jobID int64, want queue.Status, timeout time.Duration) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job %d: %v", jobID, err)
		}
		if job != nil && job.Status == want {
			return job
		}
		if job != nil && job.Status.IsTerminal() {
			t.Fatalf("job %d reached %s (error %q), want %s", jobID, job.Status, job.ErrorMessage, want)
		}
		if time.Now().After(deadline) {
			status := queue.Status("missing")
			if job != nil {
				status = job.Status
			}
			t.Fatalf("job %d still %s after %s, want %s", jobID, status, timeout, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
