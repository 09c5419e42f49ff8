package queue

import (
	"database/sql"
	"errors"
	"time"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const (
	jobColumns     = "id, video_id, job_type, status, created_at, updated_at, completed_at, output_file, start_time, end_time, overlay_id, quality, source_file, error_message"
	videoColumns   = "id, filename, size, duration, upload_time, original_video_id, producing_job_id"
	overlayColumns = "id, video_id, type, content, position, start_time, end_time, font_name, created_at"
	versionColumns = "id, video_id, quality, file_path, job_id, created_at"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id           int64
		videoID      sql.NullInt64
		jobType      string
		status       string
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
		outputFile   sql.NullString
		startTime    sql.NullFloat64
		endTime      sql.NullFloat64
		overlayID    sql.NullInt64
		quality      sql.NullString
		sourceFile   sql.NullString
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&videoID,
		&jobType,
		&status,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&outputFile,
		&startTime,
		&endTime,
		&overlayID,
		&quality,
		&sourceFile,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		VideoID:      videoID.Int64,
		Type:         JobType(jobType),
		Status:       Status(status),
		OutputFile:   outputFile.String,
		OverlayID:    overlayID.Int64,
		Quality:      Quality(quality.String),
		SourceFile:   sourceFile.String,
		ErrorMessage: errorMessage.String,
	}
	if startTime.Valid {
		v := startTime.Float64
		job.StartTime = &v
	}
	if endTime.Valid {
		v := endTime.Float64
		job.EndTime = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func scanVideo(scanner rowScanner) (*Video, error) {
	var (
		video       Video
		uploadRaw   sql.NullString
		originalID  sql.NullInt64
		producingID sql.NullInt64
	)
	if err := scanner.Scan(
		&video.ID,
		&video.Filename,
		&video.Size,
		&video.Duration,
		&uploadRaw,
		&originalID,
		&producingID,
	); err != nil {
		return nil, err
	}
	video.OriginalVideoID = originalID.Int64
	video.ProducingJobID = producingID.Int64
	if uploaded, err := parseTimeString(uploadRaw.String); err == nil {
		video.UploadTime = uploaded
	}
	return &video, nil
}

func scanOverlay(scanner rowScanner) (*Overlay, error) {
	var (
		overlay    Overlay
		kind       string
		position   string
		fontName   sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&overlay.ID,
		&overlay.VideoID,
		&kind,
		&overlay.Content,
		&position,
		&overlay.StartTime,
		&overlay.EndTime,
		&fontName,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	overlay.Type = OverlayType(kind)
	overlay.Position = Position(position)
	overlay.FontName = fontName.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		overlay.CreatedAt = created
	}
	return &overlay, nil
}

func scanVersion(scanner rowScanner) (*VideoVersion, error) {
	var (
		version    VideoVersion
		quality    string
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&version.ID,
		&version.VideoID,
		&quality,
		&version.FilePath,
		&version.JobID,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	version.Quality = Quality(quality)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		version.CreatedAt = created
	}
	return &version, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
