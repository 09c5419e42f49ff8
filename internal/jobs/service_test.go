package jobs_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/jobs"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
	"vidpipe/internal/storage"
	"vidpipe/internal/testsupport"
)

type countingWaker struct{ n int }

func (w *countingWaker) Notify() { w.n++ }

func newService(t *testing.T) (*jobs.Service, *queue.Store, *config.Config, *countingWaker) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	waker := &countingWaker{}
	svc := jobs.NewService(cfg, store, storage.New(cfg), nil, waker)
	return svc, store, cfg, waker
}

func TestSubmitUploadStagesFile(t *testing.T) {
	svc, store, cfg, waker := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitUpload(ctx, "My Clip.mp4", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	if job.Type != queue.JobTypeUpload || job.Status != queue.StatusPending || job.VideoID != 0 {
		t.Fatalf("unexpected job: %+v", job)
	}
	want := "temp_upload_" + itoa(job.ID) + "_My_Clip.mp4"
	if job.SourceFile != want {
		t.Fatalf("expected staged name %q, got %q", want, job.SourceFile)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.UploadsDir, want))
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "bytes" {
		t.Fatalf("unexpected staged contents %q", data)
	}
	stored, _ := store.GetJob(ctx, job.ID)
	if stored.SourceFile != want {
		t.Fatalf("staged name not persisted: %+v", stored)
	}
	if waker.n != 1 {
		t.Fatalf("expected one wake-up, got %d", waker.n)
	}
}

func TestSubmitUploadRejectsOversizedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.MaxUploadMB = 1
	store := testsupport.MustOpenStore(t, cfg)
	svc := jobs.NewService(cfg, store, storage.New(cfg), nil, nil)

	_, err := svc.SubmitUpload(context.Background(), "big.mp4", strings.NewReader(strings.Repeat("x", 1<<20+1)))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	all, _ := store.ListJobs(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected no job rows, got %d", len(all))
	}
	entries, _ := os.ReadDir(cfg.Paths.UploadsDir)
	if len(entries) != 0 {
		t.Fatalf("expected no staged files, got %d", len(entries))
	}
}

func TestSubmitTrimValidation(t *testing.T) {
	svc, store, cfg, waker := newService(t)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	tests := []struct {
		name       string
		videoID    int64
		start, end float64
		want       error
	}{
		{"reversed range", video.ID, 5, 2, services.ErrValidation},
		{"empty range", video.ID, 3, 3, services.ErrValidation},
		{"negative start", video.ID, -1, 2, services.ErrValidation},
		{"missing video", 999, 1, 2, services.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SubmitTrim(ctx, tt.videoID, tt.start, tt.end); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if all, _ := store.ListJobs(ctx, queue.StatusPending); len(all) != 0 {
		t.Fatalf("rejected submissions must not create rows, got %d", len(all))
	}

	job, err := svc.SubmitTrim(ctx, video.ID, 2, 5)
	if err != nil {
		t.Fatalf("SubmitTrim: %v", err)
	}
	if job.VideoID != video.ID || *job.StartTime != 2 || *job.EndTime != 5 {
		t.Fatalf("unexpected trim job: %+v", job)
	}
	if waker.n != 1 {
		t.Fatalf("expected one wake-up, got %d", waker.n)
	}
}

func TestSubmitOverlayText(t *testing.T) {
	svc, store, cfg, _ := newService(t)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	job, err := svc.SubmitOverlay(ctx, video.ID, jobs.OverlaySpec{
		Type: "text", Position: "bottom-right", StartTime: 1, EndTime: 4, Text: "Hello", FontName: "Roboto",
	}, nil)
	if err != nil {
		t.Fatalf("SubmitOverlay: %v", err)
	}
	if job.Type != queue.JobTypeOverlay || job.OverlayID == 0 {
		t.Fatalf("unexpected job: %+v", job)
	}
	overlay, err := store.GetOverlay(ctx, job.OverlayID)
	if err != nil {
		t.Fatalf("GetOverlay: %v", err)
	}
	if overlay.Content != "Hello" || overlay.FontName != "Roboto" || overlay.Position != queue.PositionBottomRight {
		t.Fatalf("unexpected overlay: %+v", overlay)
	}
}

func TestSubmitOverlayMedia(t *testing.T) {
	svc, store, cfg, _ := newService(t)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	job, err := svc.SubmitOverlay(ctx, video.ID, jobs.OverlaySpec{
		Type: "watermark", Position: "top-left", StartTime: 0, EndTime: 10, MediaFilename: "Logo.PNG",
	}, strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("SubmitOverlay: %v", err)
	}
	if job.Type != queue.JobTypeWatermark {
		t.Fatalf("watermark overlays create watermark jobs, got %s", job.Type)
	}
	overlay, _ := store.GetOverlay(ctx, job.OverlayID)
	want := "overlay_" + itoa(video.ID) + "_" + itoa(job.ID) + "_watermark.png"
	if overlay.Content != want {
		t.Fatalf("expected media name %q, got %q", want, overlay.Content)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OverlaysDir, want)); err != nil {
		t.Fatalf("expected stored media: %v", err)
	}
}

func TestSubmitOverlayValidation(t *testing.T) {
	svc, store, cfg, _ := newService(t)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	tests := []struct {
		name  string
		spec  jobs.OverlaySpec
		media bool
		want  error
	}{
		{"unknown type", jobs.OverlaySpec{Type: "sticker", Position: "center", EndTime: 1}, true, services.ErrUnsupported},
		{"unknown position", jobs.OverlaySpec{Type: "text", Position: "middle", EndTime: 1, Text: "x"}, false, services.ErrValidation},
		{"bad window", jobs.OverlaySpec{Type: "text", Position: "center", StartTime: 4, EndTime: 1, Text: "x"}, false, services.ErrValidation},
		{"text without content", jobs.OverlaySpec{Type: "text", Position: "center", EndTime: 1}, false, services.ErrValidation},
		{"image without media", jobs.OverlaySpec{Type: "image", Position: "center", EndTime: 1}, false, services.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var media io.Reader
			if tt.media {
				media = strings.NewReader("data")
			}
			_, err := svc.SubmitOverlay(ctx, video.ID, tt.spec, media)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := svc.SubmitOverlay(ctx, 999, jobs.OverlaySpec{Type: "text", Position: "center", EndTime: 1, Text: "x"}, nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing video, got %v", err)
	}
	entries, _ := os.ReadDir(cfg.Paths.OverlaysDir)
	if len(entries) != 0 {
		t.Fatalf("rejected overlays must not leave media behind, found %d files", len(entries))
	}
}

func TestSubmitQualityExport(t *testing.T) {
	svc, store, cfg, _ := newService(t)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	if _, err := svc.SubmitQualityExport(ctx, video.ID, "4k"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	job, err := svc.SubmitQualityExport(ctx, video.ID, "720p")
	if err != nil {
		t.Fatalf("SubmitQualityExport: %v", err)
	}
	if job.Quality != queue.Quality720p || job.Type != queue.JobTypeQualityExport {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestLookupsMapMissingRows(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.GetJob(ctx, 1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("GetJob: %v", err)
	}
	if _, err := svc.GetVideo(ctx, 1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("GetVideo: %v", err)
	}
	if _, err := svc.GetVersion(ctx, 1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("GetVersion: %v", err)
	}
	if _, err := svc.ListDerivatives(ctx, 1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("ListDerivatives: %v", err)
	}
	if _, err := svc.ListJobs(ctx, "finished"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("ListJobs: %v", err)
	}
}

func TestJobResult(t *testing.T) {
	svc, store, cfg, _ := newService(t)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	pending, err := svc.SubmitTrim(ctx, video.ID, 0, 1)
	if err != nil {
		t.Fatalf("SubmitTrim: %v", err)
	}
	if _, err := svc.JobResult(ctx, pending.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for pending job, got %v", err)
	}

	uploads, err := svc.ListJobs(ctx, "done")
	if err != nil || len(uploads) != 1 {
		t.Fatalf("ListJobs done: %v %v", uploads, err)
	}
	path, err := svc.JobResult(ctx, uploads[0].ID)
	if err != nil {
		t.Fatalf("JobResult: %v", err)
	}
	if path != filepath.Join(cfg.Paths.UploadsDir, "clip.mp4") {
		t.Fatalf("unexpected result path %q", path)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.JobResult(ctx, uploads[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for vanished file, got %v", err)
	}
}

func TestFailStale(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	job, err := svc.SubmitUpload(ctx, "a.mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	if _, err := store.Claim(ctx, job.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := svc.FailStale(ctx, 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	count, err := svc.FailStale(ctx, time.Hour)
	if err != nil || count != 0 {
		t.Fatalf("recent job must not be failed: %d %v", count, err)
	}
	time.Sleep(10 * time.Millisecond)
	count, err = svc.FailStale(ctx, time.Millisecond)
	if err != nil || count != 1 {
		t.Fatalf("expected one stale job, got %d %v", count, err)
	}
	failed, _ := svc.GetJob(ctx, job.ID)
	if failed.Status != queue.StatusFailed || failed.ErrorMessage == "" {
		t.Fatalf("unexpected job after fail-stale: %+v", failed)
	}
}
