package api

import (
	"maps"
	"slices"
	"time"

	"vidpipe/internal/deps"
	"vidpipe/internal/preflight"
	"vidpipe/internal/queue"
	"vidpipe/internal/workflow"
)

// FromJob converts a queue job to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:           job.ID,
		VideoID:      optionalID(job.VideoID),
		JobType:      string(job.Type),
		Status:       string(job.Status),
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
		OutputFile:   job.OutputFile,
		StartTime:    job.StartTime,
		EndTime:      job.EndTime,
		OverlayID:    optionalID(job.OverlayID),
		Quality:      string(job.Quality),
		ErrorMessage: job.ErrorMessage,
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = formatTime(*job.CompletedAt)
	}
	return dto
}

// FromJobs converts a slice of jobs; the result is never nil so it encodes
// as an empty array.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromVideo converts a queue video.
func FromVideo(video *queue.Video) Video {
	if video == nil {
		return Video{}
	}
	return Video{
		ID:              video.ID,
		Filename:        video.Filename,
		Size:            video.Size,
		Duration:        video.Duration,
		UploadTime:      formatTime(video.UploadTime),
		OriginalVideoID: optionalID(video.OriginalVideoID),
	}
}

// FromVersion converts a quality version.
func FromVersion(version *queue.VideoVersion) VideoVersion {
	if version == nil {
		return VideoVersion{}
	}
	return VideoVersion{
		ID:        version.ID,
		VideoID:   version.VideoID,
		Quality:   string(version.Quality),
		FilePath:  version.FilePath,
		CreatedAt: formatTime(version.CreatedAt),
	}
}

// FromDerivatives converts the outputs derived from videoID.
func FromDerivatives(videoID int64, d *queue.Derivatives) Derivatives {
	dto := Derivatives{VideoID: videoID, Videos: []Video{}, Versions: []VideoVersion{}}
	if d == nil {
		return dto
	}
	for _, v := range d.Videos {
		dto.Videos = append(dto.Videos, FromVideo(v))
	}
	for _, v := range d.Versions {
		dto.Versions = append(dto.Versions, FromVersion(v))
	}
	return dto
}

// FromStatusSummary converts the workflow summary. Queue stats always carry
// every status so clients can render zero counts.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		stats[string(status)] = summary.QueueStats[status]
	}
	dto := WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueDepth: summary.QueueDepth,
		InFlight:   summary.InFlight,
		QueueStats: stats,
		LastError:  summary.LastError,
	}
	if dto.InFlight == nil {
		dto.InFlight = []int64{}
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		dto.LastJob = &job
	}
	return dto
}

// FromDependencies converts binary availability reports.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Path:        s.Path,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Version:     s.Version,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// SortedStats returns the stats keys in a deterministic order for display.
func SortedStats(stats map[string]int) []string {
	return slices.Sorted(maps.Keys(stats))
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
