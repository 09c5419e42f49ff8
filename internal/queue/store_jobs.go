package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotProcessing is returned when a transition expects a processing job
// but the row is in another state.
var ErrNotProcessing = errors.New("job is not processing")

// StageFunc runs inside the job creation transaction after the job (and its
// overlay, when present) has an id. It may fill in Job.SourceFile and
// Overlay.Content; returning an error rolls the whole creation back.
type StageFunc func(ctx context.Context, job *Job, overlay *Overlay) error

// CreateJob inserts a pending job, and optionally the overlay it renders,
// in a single transaction.
func (s *Store) CreateJob(ctx context.Context, job *Job, overlay *Overlay, stage StageFunc) (*Job, error) {
	ctx = ensureContext(ctx)
	if job == nil {
		return nil, errors.New("create job: nil job")
	}
	now := time.Now().UTC()
	created := *job
	created.Status = StatusPending
	created.CreatedAt = now
	created.UpdatedAt = now
	created.CompletedAt = nil
	created.OutputFile = ""
	created.ErrorMessage = ""

	var createdOverlay *Overlay
	if overlay != nil {
		copied := *overlay
		copied.CreatedAt = now
		createdOverlay = &copied
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if createdOverlay != nil {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO overlays (video_id, type, content, position, start_time, end_time, font_name, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				createdOverlay.VideoID,
				createdOverlay.Type,
				createdOverlay.Content,
				createdOverlay.Position,
				createdOverlay.StartTime,
				createdOverlay.EndTime,
				nullableString(createdOverlay.FontName),
				formatTime(now),
			)
			if err != nil {
				return fmt.Errorf("insert overlay: %w", err)
			}
			if createdOverlay.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("overlay id: %w", err)
			}
			created.OverlayID = createdOverlay.ID
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (video_id, job_type, status, created_at, updated_at, start_time, end_time, overlay_id, quality, source_file)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableInt64(created.VideoID),
			created.Type,
			created.Status,
			formatTime(now),
			formatTime(now),
			nullableFloat(created.StartTime),
			nullableFloat(created.EndTime),
			nullableInt64(created.OverlayID),
			nullableString(string(created.Quality)),
			nullableString(created.SourceFile),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		if created.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("job id: %w", err)
		}

		if stage == nil {
			return nil
		}
		if err := stage(ctx, &created, createdOverlay); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET source_file = ? WHERE id = ?`,
			nullableString(created.SourceFile), created.ID,
		); err != nil {
			return fmt.Errorf("record staged source: %w", err)
		}
		if createdOverlay != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE overlays SET content = ? WHERE id = ?`,
				createdOverlay.Content, createdOverlay.ID,
			); err != nil {
				return fmt.Errorf("record overlay content: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetJob fetches a job by id. It returns nil, nil when no row exists.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status (all jobs when none given), newest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY id DESC"
	return s.queryJobs(ctx, query, args...)
}

// ListJobsForVideo returns every job naming the video as its source.
func (s *Store) ListJobsForVideo(ctx context.Context, videoID int64) ([]*Job, error) {
	ctx = ensureContext(ctx)
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs WHERE video_id = ? ORDER BY id", videoID)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// PendingJobIDs returns up to limit pending job ids in creation order,
// skipping the ids in exclude.
func (s *Store) PendingJobIDs(ctx context.Context, limit int, exclude []int64) ([]int64, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		return nil, nil
	}
	query := "SELECT id FROM jobs WHERE status = ?"
	args := []any{StatusPending}
	if len(exclude) > 0 {
		query += " AND id NOT IN (" + makePlaceholders(len(exclude)) + ")"
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending job: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Claim atomically moves a pending job to processing. It reports false when
// the job is no longer pending (another worker claimed it, or it is unknown).
//
// The processing state is persisted before any work starts and is never
// rolled back. A crash between Claim and the terminal write leaves the job
// in processing; the daemon does not reconcile such jobs on its own (see
// FailStaleProcessing for the operator-driven path).
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing, formatTime(time.Now()), id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job %d: %w", id, err)
	}
	return affected == 1, nil
}

// MarkFailed moves a processing job to failed. output_file stays empty.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, output_file = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, nullableString(strings.TrimSpace(reason)), formatTime(time.Now()), id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark job %d failed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job %d failed: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("mark job %d failed: %w", id, ErrNotProcessing)
	}
	return nil
}

// FailStaleProcessing fails processing jobs whose last update precedes cutoff.
// It exists for operators recovering from a crashed daemon and is never
// invoked automatically.
func (s *Store) FailStaleProcessing(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, output_file = NULL, updated_at = ?
         WHERE status = ? AND updated_at < ?`,
		StatusFailed, nullableString(reason), formatTime(time.Now()), StatusProcessing, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale processing jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns job counts keyed by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}
