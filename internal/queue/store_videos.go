package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetVideo fetches a video by id. It returns nil, nil when no row exists.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = ?", id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}
	return video, nil
}

// ListVideos returns every video, oldest first.
func (s *Store) ListVideos(ctx context.Context) ([]*Video, error) {
	ctx = ensureContext(ctx)
	return s.queryVideos(ctx, "SELECT "+videoColumns+" FROM videos ORDER BY id")
}

// GetOverlay fetches an overlay by id. It returns nil, nil when no row exists.
func (s *Store) GetOverlay(ctx context.Context, id int64) (*Overlay, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+overlayColumns+" FROM overlays WHERE id = ?", id)
	overlay, err := scanOverlay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get overlay %d: %w", id, err)
	}
	return overlay, nil
}

// GetVersion fetches a video version by id. It returns nil, nil when no row exists.
func (s *Store) GetVersion(ctx context.Context, id int64) (*VideoVersion, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM video_versions WHERE id = ?", id)
	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video version %d: %w", id, err)
	}
	return version, nil
}

// ListDerivatives returns the videos and versions produced by completed jobs
// that name videoID as their source. Only direct children are returned.
func (s *Store) ListDerivatives(ctx context.Context, videoID int64) (*Derivatives, error) {
	ctx = ensureContext(ctx)
	videos, err := s.queryVideos(ctx,
		`SELECT v.id, v.filename, v.size, v.duration, v.upload_time, v.original_video_id, v.producing_job_id
         FROM videos v JOIN jobs j ON j.id = v.producing_job_id
         WHERE j.video_id = ? AND j.status = ? AND j.job_type <> ?
         ORDER BY v.id`,
		videoID, StatusDone, JobTypeUpload,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT vv.id, vv.video_id, vv.quality, vv.file_path, vv.job_id, vv.created_at
         FROM video_versions vv JOIN jobs j ON j.id = vv.job_id
         WHERE j.video_id = ? AND j.status = ?
         ORDER BY vv.id`,
		videoID, StatusDone,
	)
	if err != nil {
		return nil, fmt.Errorf("query video versions: %w", err)
	}
	defer rows.Close()

	out := &Derivatives{Videos: videos}
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video version: %w", err)
		}
		out.Versions = append(out.Versions, version)
	}
	return out, rows.Err()
}

func (s *Store) queryVideos(ctx context.Context, query string, args ...any) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}
