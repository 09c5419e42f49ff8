package workflow

import (
	"context"
	"errors"
	"time"

	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
	"vidpipe/internal/storage"
)

// failJob marks job failed, removes partial artifacts and notifies.
func (m *Manager) failJob(ctx context.Context, job *queue.Job, cause error, started time.Time, cleanup []string) {
	logger := logging.WithContext(ctx, m.logger)
	for _, path := range cleanup {
		if err := storage.Remove(path); err != nil {
			logging.WarnWithContext(logger, "failed to remove artifact of failed job", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
		}
	}

	reason := cause.Error()
	if err := m.store.MarkFailed(ctx, job.ID, reason); err != nil {
		if errors.Is(err, queue.ErrNotProcessing) {
			logger.Warn("job left processing before failure was recorded", logging.Error(err))
		} else {
			m.setLastError(err)
			logging.ErrorWithContext(logger, "failed to record job failure", "job_fail_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
	}
	m.setLastError(cause)

	elapsed := time.Since(started)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorKind, services.Kind(cause)),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
		logging.Duration("elapsed", elapsed),
	)
	m.metrics.observe(job.Type, queue.StatusFailed, elapsed)

	failed := *job
	failed.Status = queue.StatusFailed
	failed.ErrorMessage = reason
	m.setLastJob(&failed)

	m.notify(ctx, notifications.EventJobFailed, notifications.Payload{
		notifications.KeyJobID:    job.ID,
		notifications.KeyJobType:  string(job.Type),
		notifications.KeyStatus:   string(queue.StatusFailed),
		notifications.KeyVideoID:  job.VideoID,
		notifications.KeyError:    reason,
		notifications.KeyDuration: elapsed.Seconds(),
	})
}

// completeJob records a successful job. The store commit has already run.
func (m *Manager) completeJob(ctx context.Context, job *queue.Job, result jobResult, started time.Time) {
	logger := logging.WithContext(ctx, m.logger)
	elapsed := time.Since(started)

	done := *job
	done.Status = queue.StatusDone
	done.OutputFile = result.outputFile
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_done"),
		logging.String("output_file", result.outputFile),
		logging.Duration("elapsed", elapsed),
	}
	if result.video != nil {
		attrs = append(attrs, logging.Int64(logging.FieldVideoID, result.video.ID))
		if job.Type == queue.JobTypeUpload {
			done.VideoID = result.video.ID
		}
	}
	if result.version != nil {
		attrs = append(attrs, logging.Int64("version_id", result.version.ID))
	}
	logger.Info("job done", logging.Args(attrs...)...)
	m.metrics.observe(job.Type, queue.StatusDone, elapsed)
	m.setLastJob(&done)

	m.notify(ctx, notifications.EventJobDone, notifications.Payload{
		notifications.KeyJobID:    job.ID,
		notifications.KeyJobType:  string(job.Type),
		notifications.KeyStatus:   string(queue.StatusDone),
		notifications.KeyVideoID:  done.VideoID,
		notifications.KeyOutput:   result.outputFile,
		notifications.KeyDuration: elapsed.Seconds(),
	})
}

// notify publishes with a bounded timeout. Delivery failures never change
// the job outcome.
func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	timeout := time.Duration(m.cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	notifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := m.notifier.Publish(notifyCtx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification endpoint configuration"),
		)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "the source or overlay file is missing from storage"
	case errors.Is(err, services.ErrMetadata):
		return "ffprobe could not read the file; it may be corrupt or not a video"
	case errors.Is(err, services.ErrExternalTool):
		return "inspect the ffmpeg error output; verify ffmpeg is installed"
	case errors.Is(err, services.ErrValidation):
		return "job parameters were rejected"
	case errors.Is(err, services.ErrIO):
		return "check storage permissions and free space"
	default:
		return "check logs for details"
	}
}
