package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidpipe/internal/queue"
	"vidpipe/internal/testsupport"
)

func floatPtr(v float64) *float64 { return &v }

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if store.Path() != cfg.QueueDBPath() {
		t.Fatalf("unexpected db path %q", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	stats, err := reopened.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected empty stats, got %v", stats)
	}
}

func TestCreateJobStartsPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})
	job, err := store.CreateJob(ctx, &queue.Job{
		VideoID:   video.ID,
		Type:      queue.JobTypeTrim,
		Status:    queue.StatusDone,
		StartTime: floatPtr(2),
		EndTime:   floatPtr(5),
	}, nil, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.ID == 0 || job.Status != queue.StatusPending {
		t.Fatalf("unexpected job: %+v", job)
	}

	fetched, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.OutputFile != "" || fetched.CompletedAt != nil {
		t.Fatalf("unexpected persisted job: %+v", fetched)
	}
	if fetched.StartTime == nil || *fetched.StartTime != 2 || fetched.EndTime == nil || *fetched.EndTime != 5 {
		t.Fatalf("expected trim window, got %v %v", fetched.StartTime, fetched.EndTime)
	}
	if fetched.VideoID != video.ID {
		t.Fatalf("expected video id %d, got %d", video.ID, fetched.VideoID)
	}
}

func TestCreateJobWithOverlayAndStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	video := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})

	overlay := &queue.Overlay{
		VideoID:   video.ID,
		Type:      queue.OverlayImage,
		Position:  queue.PositionTopRight,
		StartTime: 1,
		EndTime:   4,
	}
	job, err := store.CreateJob(ctx, &queue.Job{VideoID: video.ID, Type: queue.JobTypeOverlay}, overlay,
		func(_ context.Context, job *queue.Job, ov *queue.Overlay) error {
			ov.Content = "overlay_media_for_job"
			return nil
		})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.OverlayID == 0 {
		t.Fatal("expected overlay id on job")
	}
	stored, err := store.GetOverlay(ctx, job.OverlayID)
	if err != nil {
		t.Fatalf("GetOverlay: %v", err)
	}
	if stored.Content != "overlay_media_for_job" || stored.Position != queue.PositionTopRight {
		t.Fatalf("unexpected overlay: %+v", stored)
	}
}

func TestCreateJobStageFailureLeavesNoRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stageErr := errors.New("disk full")
	_, err := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload}, nil,
		func(context.Context, *queue.Job, *queue.Overlay) error { return stageErr })
	if !errors.Is(err, stageErr) {
		t.Fatalf("expected stage error, got %v", err)
	}
	jobs, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs after rollback, got %d", len(jobs))
	}
}

func TestClaimIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload, SourceFile: "a.mp4"}, nil, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(ctx, job.ID)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if winners.Load() != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", winners.Load())
	}

	fetched, _ := store.GetJob(ctx, job.ID)
	if fetched.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", fetched.Status)
	}
}

func TestMarkFailedOnlyFromProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload, SourceFile: "a.mp4"}, nil, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "too early"); !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing for pending job, got %v", err)
	}
	if _, err := store.Claim(ctx, job.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "probe failed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "again"); !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected terminal job to reject transition, got %v", err)
	}

	fetched, _ := store.GetJob(ctx, job.ID)
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != "probe failed" || fetched.OutputFile != "" {
		t.Fatalf("unexpected failed job: %+v", fetched)
	}
	if ok, _ := store.Claim(ctx, job.ID); ok {
		t.Fatal("failed job must not be claimable")
	}
}

func TestCommitVideoLinksLineageAndIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})
	if source.IsDerived() {
		t.Fatal("uploaded video must be a root")
	}
	job, err := store.CreateJob(ctx, &queue.Job{VideoID: source.ID, Type: queue.JobTypeTrim, StartTime: floatPtr(2), EndTime: floatPtr(5)}, nil, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}

	derived := queue.NewVideo{Filename: "trimmed_2_clip.mp4", Size: 10, Duration: 3, OriginalVideoID: source.ID}
	first, err := store.CommitVideo(ctx, job.ID, derived, "/processed/trimmed_2_clip.mp4")
	if err != nil {
		t.Fatalf("CommitVideo: %v", err)
	}
	second, err := store.CommitVideo(ctx, job.ID, derived, "/processed/trimmed_2_clip.mp4")
	if err != nil {
		t.Fatalf("repeated CommitVideo: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected idempotent commit, got ids %d and %d", first.ID, second.ID)
	}
	if first.OriginalVideoID != source.ID || first.ProducingJobID != job.ID || first.Duration != 3 {
		t.Fatalf("unexpected derived video: %+v", first)
	}

	done, _ := store.GetJob(ctx, job.ID)
	if done.Status != queue.StatusDone || done.OutputFile != "/processed/trimmed_2_clip.mp4" || done.CompletedAt == nil {
		t.Fatalf("unexpected done job: %+v", done)
	}
	if done.VideoID != source.ID {
		t.Fatalf("trim job must keep its source video id, got %d", done.VideoID)
	}

	if _, err := store.CommitVideo(ctx, job.ID, derived, "/processed/other.mp4"); !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected conflicting commit to fail, got %v", err)
	}
}

func TestCommitVideoRejectsUnclaimedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload, SourceFile: "a.mp4"}, nil, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := store.CommitVideo(ctx, job.ID, queue.NewVideo{Filename: "a.mp4"}, "/uploads/a.mp4"); !errors.Is(err, queue.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
	videos, err := store.ListVideos(ctx)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 0 {
		t.Fatalf("expected rollback to leave no videos, got %d", len(videos))
	}
}

func TestUploadCommitSetsJobVideoID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.SeedRootVideo(t, cfg, store, "temp_upload_1_clip.mp4", testsupport.MediaStub{Duration: 10})
	jobs, err := store.ListJobs(ctx, queue.StatusDone)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].VideoID != video.ID {
		t.Fatalf("expected upload job to reference video %d, got %+v", video.ID, jobs)
	}
}

func TestCommitVersionAndDerivatives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.SeedRootVideo(t, cfg, store, "clip.mp4", testsupport.MediaStub{Duration: 10})
	other := testsupport.SeedRootVideo(t, cfg, store, "other.mp4", testsupport.MediaStub{Duration: 4})

	export, err := store.CreateJob(ctx, &queue.Job{VideoID: source.ID, Type: queue.JobTypeQualityExport, Quality: queue.Quality720p}, nil, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := store.Claim(ctx, export.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	version, err := store.CommitVersion(ctx, export.ID, source.ID, queue.Quality720p, "/processed/720p_clip.mp4")
	if err != nil {
		t.Fatalf("CommitVersion: %v", err)
	}
	again, err := store.CommitVersion(ctx, export.ID, source.ID, queue.Quality720p, "/processed/720p_clip.mp4")
	if err != nil || again.ID != version.ID {
		t.Fatalf("expected idempotent version commit, got %v %v", again, err)
	}

	trim, _ := store.CreateJob(ctx, &queue.Job{VideoID: source.ID, Type: queue.JobTypeTrim, StartTime: floatPtr(0), EndTime: floatPtr(1)}, nil, nil)
	_, _ = store.Claim(ctx, trim.ID)
	if _, err := store.CommitVideo(ctx, trim.ID, queue.NewVideo{Filename: "t.mp4", OriginalVideoID: source.ID, Duration: 1}, "/processed/t.mp4"); err != nil {
		t.Fatalf("CommitVideo: %v", err)
	}

	pending, _ := store.CreateJob(ctx, &queue.Job{VideoID: source.ID, Type: queue.JobTypeTrim, StartTime: floatPtr(0), EndTime: floatPtr(2)}, nil, nil)

	derivatives, err := store.ListDerivatives(ctx, source.ID)
	if err != nil {
		t.Fatalf("ListDerivatives: %v", err)
	}
	if len(derivatives.Videos) != 1 || derivatives.Videos[0].ProducingJobID != trim.ID {
		t.Fatalf("unexpected derived videos: %+v", derivatives.Videos)
	}
	if len(derivatives.Versions) != 1 || derivatives.Versions[0].Quality != queue.Quality720p {
		t.Fatalf("unexpected versions: %+v", derivatives.Versions)
	}

	none, err := store.ListDerivatives(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListDerivatives: %v", err)
	}
	if len(none.Videos) != 0 || len(none.Versions) != 0 {
		t.Fatalf("expected no derivatives for unrelated video, got %+v", none)
	}

	ids, err := store.PendingJobIDs(ctx, 10, nil)
	if err != nil {
		t.Fatalf("PendingJobIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != pending.ID {
		t.Fatalf("expected only pending job %d, got %v", pending.ID, ids)
	}
	ids, err = store.PendingJobIDs(ctx, 10, []int64{pending.ID})
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected excluded job to be skipped, got %v %v", ids, err)
	}
}

func TestFailStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stuck, _ := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload, SourceFile: "a.mp4"}, nil, nil)
	fresh, _ := store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload, SourceFile: "b.mp4"}, nil, nil)
	_, _ = store.Claim(ctx, stuck.ID)
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, _ = store.Claim(ctx, fresh.ID)

	n, err := store.FailStaleProcessing(ctx, cutoff, "daemon crashed")
	if err != nil {
		t.Fatalf("FailStaleProcessing: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stale job, got %d", n)
	}
	got, _ := store.GetJob(ctx, stuck.ID)
	if got.Status != queue.StatusFailed || got.ErrorMessage != "daemon crashed" {
		t.Fatalf("unexpected stale job: %+v", got)
	}
	got, _ = store.GetJob(ctx, fresh.ID)
	if got.Status != queue.StatusProcessing {
		t.Fatalf("fresh job should stay processing, got %s", got.Status)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusFailed] != 1 || stats[queue.StatusProcessing] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestGetMissingRowsReturnNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if job, err := store.GetJob(ctx, 99); err != nil || job != nil {
		t.Fatalf("expected nil job, got %v %v", job, err)
	}
	if video, err := store.GetVideo(ctx, 99); err != nil || video != nil {
		t.Fatalf("expected nil video, got %v %v", video, err)
	}
	if overlay, err := store.GetOverlay(ctx, 99); err != nil || overlay != nil {
		t.Fatalf("expected nil overlay, got %v %v", overlay, err)
	}
	if version, err := store.GetVersion(ctx, 99); err != nil || version != nil {
		t.Fatalf("expected nil version, got %v %v", version, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	db.Close()

	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
