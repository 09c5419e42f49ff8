package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"vidpipe/internal/command"
	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
	"vidpipe/internal/storage"
)

// Waker is notified after every successful submission.
type Waker interface {
	Notify()
}

// Service creates jobs and answers lookups.
type Service struct {
	store     *queue.Store
	buckets   *storage.Buckets
	logger    *slog.Logger
	waker     Waker
	maxUpload int64
}

// NewService wires the request layer. waker may be nil, in which case new
// jobs are picked up on the next dispatcher poll.
func NewService(cfg *config.Config, store *queue.Store, buckets *storage.Buckets, logger *slog.Logger, waker Waker) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:     store,
		buckets:   buckets,
		logger:    logging.NewComponentLogger(logger, "jobs"),
		waker:     waker,
		maxUpload: int64(cfg.API.MaxUploadMB) << 20,
	}
}

// OverlaySpec is a requested overlay. Text is required for text overlays;
// every other type needs a media reader passed to SubmitOverlay.
type OverlaySpec struct {
	Type          string
	Position      string
	StartTime     float64
	EndTime       float64
	Text          string
	FontName      string
	MediaFilename string
}

// SubmitUpload stages r as a new upload and creates its pending job.
func (s *Service) SubmitUpload(ctx context.Context, filename string, r io.Reader) (*queue.Job, error) {
	if r == nil {
		return nil, services.Wrap(services.ErrValidation, "jobs", "upload", "file is required", nil)
	}
	name := storage.SanitizeFilename(filename)
	partial, err := s.buckets.Stage(storage.Uploads, r, s.maxUpload)
	if err != nil {
		return nil, err
	}

	job, err := s.store.CreateJob(ctx, &queue.Job{Type: queue.JobTypeUpload}, nil,
		func(_ context.Context, job *queue.Job, _ *queue.Overlay) error {
			staged := fmt.Sprintf("temp_upload_%d_%s", job.ID, name)
			if _, err := s.buckets.Promote(partial, staged); err != nil {
				return err
			}
			job.SourceFile = staged
			return nil
		})
	if err != nil {
		_ = storage.Remove(partial.Path)
		return nil, s.creationError("upload", err)
	}
	s.submitted(ctx, job, logging.String("filename", job.SourceFile), logging.Int64("size", partial.Size))
	return job, nil
}

// SubmitTrim creates a trim job for [start, end) of an existing video.
func (s *Service) SubmitTrim(ctx context.Context, videoID int64, start, end float64) (*queue.Job, error) {
	if _, err := command.NewTrim(start, end); err != nil {
		return nil, err
	}
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	job, err := s.store.CreateJob(ctx, &queue.Job{
		VideoID:   videoID,
		Type:      queue.JobTypeTrim,
		StartTime: &start,
		EndTime:   &end,
	}, nil, nil)
	if err != nil {
		return nil, s.creationError("trim", err)
	}
	s.submitted(ctx, job)
	return job, nil
}

// SubmitOverlay validates spec, stores the overlay media (if any) and
// creates the overlay row plus its pending job in one transaction.
func (s *Service) SubmitOverlay(ctx context.Context, videoID int64, spec OverlaySpec, media io.Reader) (*queue.Job, error) {
	overlayType, ok := queue.ParseOverlayType(spec.Type)
	if !ok {
		return nil, services.Wrap(services.ErrUnsupported, "jobs", "overlay", fmt.Sprintf("overlay type %q", spec.Type), nil)
	}
	position, ok := queue.ParsePosition(spec.Position)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "jobs", "overlay", fmt.Sprintf("unsupported position %q", spec.Position), nil)
	}
	if _, err := command.NewWindow(spec.StartTime, spec.EndTime); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(spec.Text)
	switch {
	case overlayType == queue.OverlayText && text == "":
		return nil, services.Wrap(services.ErrValidation, "jobs", "overlay", "text content is required for text overlays", nil)
	case overlayType != queue.OverlayText && media == nil:
		return nil, services.Wrap(services.ErrValidation, "jobs", "overlay",
			fmt.Sprintf("a media file is required for %s overlays", overlayType), nil)
	}
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}

	overlay := &queue.Overlay{
		VideoID:   videoID,
		Type:      overlayType,
		Position:  position,
		StartTime: spec.StartTime,
		EndTime:   spec.EndTime,
	}
	var partial *storage.Partial
	if overlayType == queue.OverlayText {
		overlay.Content = text
		overlay.FontName = strings.TrimSpace(spec.FontName)
	} else {
		var err error
		partial, err = s.buckets.Stage(storage.Overlays, media, s.maxUpload)
		if err != nil {
			return nil, err
		}
	}

	var stage queue.StageFunc
	if partial != nil {
		ext := storage.SanitizeExt(spec.MediaFilename)
		stage = func(_ context.Context, job *queue.Job, ov *queue.Overlay) error {
			name := fmt.Sprintf("overlay_%d_%d_%s%s", videoID, job.ID, overlayType, ext)
			if _, err := s.buckets.Promote(partial, name); err != nil {
				return err
			}
			ov.Content = name
			return nil
		}
	}
	job, err := s.store.CreateJob(ctx, &queue.Job{VideoID: videoID, Type: overlayType.JobType()}, overlay, stage)
	if err != nil {
		if partial != nil {
			_ = storage.Remove(partial.Path)
		}
		return nil, s.creationError("overlay", err)
	}
	s.submitted(ctx, job, logging.String("overlay_type", string(overlayType)), logging.String("position", string(position)))
	return job, nil
}

// SubmitQualityExport creates a quality export job for an existing video.
func (s *Service) SubmitQualityExport(ctx context.Context, videoID int64, quality string) (*queue.Job, error) {
	q, ok := queue.ParseQuality(quality)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "jobs", "quality export", fmt.Sprintf("unsupported quality %q", quality), nil)
	}
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	job, err := s.store.CreateJob(ctx, &queue.Job{VideoID: videoID, Type: queue.JobTypeQualityExport, Quality: q}, nil, nil)
	if err != nil {
		return nil, s.creationError("quality export", err)
	}
	s.submitted(ctx, job, logging.String("quality", string(q)))
	return job, nil
}

func (s *Service) submitted(ctx context.Context, job *queue.Job, attrs ...logging.Attr) {
	base := []logging.Attr{
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.String(logging.FieldEventType, "job_created"),
	}
	if job.VideoID != 0 {
		base = append(base, logging.Int64(logging.FieldVideoID, job.VideoID))
	}
	logging.WithContext(ctx, s.logger).Info("job created", logging.Args(append(base, attrs...)...)...)
	if s.waker != nil {
		s.waker.Notify()
	}
}

func (s *Service) creationError(operation string, err error) error {
	if services.Kind(err) != "internal" {
		return err
	}
	return services.Wrap(services.ErrIO, "jobs", operation, "create job", err)
}

// GetJob returns a job or services.ErrNotFound.
func (s *Service) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, notFound("job", id)
	}
	return job, nil
}

// GetVideo returns a video or services.ErrNotFound.
func (s *Service) GetVideo(ctx context.Context, id int64) (*queue.Video, error) {
	video, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, notFound("video", id)
	}
	return video, nil
}

// GetVersion returns a quality version or services.ErrNotFound.
func (s *Service) GetVersion(ctx context.Context, id int64) (*queue.VideoVersion, error) {
	version, err := s.store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, notFound("video version", id)
	}
	return version, nil
}

// ListJobs returns jobs filtered by the given status names. Unknown names
// are a validation error.
func (s *Service) ListJobs(ctx context.Context, statuses ...string) ([]*queue.Job, error) {
	parsed := make([]queue.Status, 0, len(statuses))
	for _, raw := range statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "jobs", "list", fmt.Sprintf("unknown status %q", raw), nil)
		}
		parsed = append(parsed, status)
	}
	return s.store.ListJobs(ctx, parsed...)
}

// ListDerivatives returns the outputs of completed jobs that used videoID
// as their source.
func (s *Service) ListDerivatives(ctx context.Context, videoID int64) (*queue.Derivatives, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.store.ListDerivatives(ctx, videoID)
}

// JobResult returns the output file of a done job. Jobs in any other state
// yield services.ErrConflict; a vanished file yields services.ErrNotFound.
func (s *Service) JobResult(ctx context.Context, id int64) (string, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != queue.StatusDone {
		return "", services.Wrap(services.ErrConflict, "jobs", "result", fmt.Sprintf("job %d is %s", id, job.Status), nil)
	}
	if !storage.FileExists(job.OutputFile) {
		return "", services.Wrap(services.ErrNotFound, "jobs", "result", fmt.Sprintf("output file for job %d", id), nil)
	}
	return job.OutputFile, nil
}

// VersionFile returns the file backing a quality version.
func (s *Service) VersionFile(ctx context.Context, id int64) (string, error) {
	version, err := s.GetVersion(ctx, id)
	if err != nil {
		return "", err
	}
	if !storage.FileExists(version.FilePath) {
		return "", services.Wrap(services.ErrNotFound, "jobs", "version file", fmt.Sprintf("file for version %d", id), nil)
	}
	return version.FilePath, nil
}

// FailStale moves processing jobs untouched for olderThan to failed. It is
// the manual recovery path after a daemon crash.
func (s *Service) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, services.Wrap(services.ErrValidation, "jobs", "fail stale", "older-than must be positive", nil)
	}
	cutoff := time.Now().Add(-olderThan)
	count, err := s.store.FailStaleProcessing(ctx, cutoff, fmt.Sprintf("abandoned in processing for more than %s", olderThan))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Warn("failed stale processing jobs",
			logging.Int64("count", count),
			logging.Duration("older_than", olderThan),
			logging.String(logging.FieldEventType, "stale_jobs_failed"),
		)
	}
	return count, nil
}

func notFound(kind string, id int64) error {
	return services.Wrap(services.ErrNotFound, "jobs", "lookup", fmt.Sprintf("%s %d", kind, id), nil)
}
