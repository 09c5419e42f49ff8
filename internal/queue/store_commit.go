package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewVideo describes the video row created when a job completes.
// OriginalVideoID is zero for uploads.
type NewVideo struct {
	Filename        string
	Size            int64
	Duration        float64
	OriginalVideoID int64
}

// CommitVideo creates the video produced by jobID and marks the job done
// with outputFile, all in one transaction. For upload jobs the job's
// video_id is set to the new video. Repeating the call for a job that is
// already done with the same output returns the existing video.
func (s *Store) CommitVideo(ctx context.Context, jobID int64, video NewVideo, outputFile string) (*Video, error) {
	ctx = ensureContext(ctx)
	if outputFile == "" {
		return nil, errors.New("commit video: empty output file")
	}
	var committed *Video
	err := retryOnBusy(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			now := formatTime(time.Now())
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO videos (filename, size, duration, upload_time, original_video_id, producing_job_id)
                 VALUES (?, ?, ?, ?, ?, ?)
                 ON CONFLICT(producing_job_id) DO NOTHING`,
				video.Filename, video.Size, video.Duration, now, nullableInt64(video.OriginalVideoID), jobID,
			); err != nil {
				return fmt.Errorf("insert video: %w", err)
			}
			row := tx.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE producing_job_id = ?", jobID)
			v, err := scanVideo(row)
			if err != nil {
				return fmt.Errorf("load committed video: %w", err)
			}
			if err := markDone(ctx, tx, jobID, outputFile, v.ID, now); err != nil {
				return err
			}
			committed = v
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("commit job %d: %w", jobID, err)
	}
	return committed, nil
}

// CommitVersion creates the quality version produced by jobID and marks the
// job done, in one transaction. It is idempotent per job like CommitVideo.
func (s *Store) CommitVersion(ctx context.Context, jobID, videoID int64, quality Quality, filePath string) (*VideoVersion, error) {
	ctx = ensureContext(ctx)
	if filePath == "" {
		return nil, errors.New("commit version: empty file path")
	}
	var committed *VideoVersion
	err := retryOnBusy(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			now := formatTime(time.Now())
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO video_versions (video_id, quality, file_path, job_id, created_at)
                 VALUES (?, ?, ?, ?, ?)
                 ON CONFLICT(job_id) DO NOTHING`,
				videoID, quality, filePath, jobID, now,
			); err != nil {
				return fmt.Errorf("insert video version: %w", err)
			}
			row := tx.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM video_versions WHERE job_id = ?", jobID)
			v, err := scanVersion(row)
			if err != nil {
				return fmt.Errorf("load committed version: %w", err)
			}
			if err := markDone(ctx, tx, jobID, filePath, 0, now); err != nil {
				return err
			}
			committed = v
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("commit job %d: %w", jobID, err)
	}
	return committed, nil
}

// markDone finishes a processing job. uploadVideoID fills video_id only when
// the job does not name one yet (uploads).
func markDone(ctx context.Context, tx *sql.Tx, jobID int64, outputFile string, uploadVideoID int64, now string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs
         SET status = ?, output_file = ?, completed_at = ?, updated_at = ?,
             video_id = COALESCE(video_id, ?), error_message = NULL
         WHERE id = ? AND status = ?`,
		StatusDone, outputFile, now, now, nullableInt64(uploadVideoID), jobID, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var (
		status string
		output sql.NullString
	)
	err = tx.QueryRowContext(ctx, `SELECT status, output_file FROM jobs WHERE id = ?`, jobID).Scan(&status, &output)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("mark job done: job %d not found", jobID)
	}
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if Status(status) == StatusDone && output.String == outputFile {
		return nil
	}
	return fmt.Errorf("mark job done (status %s): %w", status, ErrNotProcessing)
}
