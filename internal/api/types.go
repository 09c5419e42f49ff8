package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID           int64    `json:"id"`
	VideoID      *int64   `json:"video_id"`
	JobType      string   `json:"job_type"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	CompletedAt  string   `json:"completed_at,omitempty"`
	OutputFile   string   `json:"output_file,omitempty"`
	StartTime    *float64 `json:"start_time,omitempty"`
	EndTime      *float64 `json:"end_time,omitempty"`
	OverlayID    *int64   `json:"overlay_id,omitempty"`
	Quality      string   `json:"quality,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Video describes an uploaded or derived video.
type Video struct {
	ID              int64   `json:"id"`
	Filename        string  `json:"filename"`
	Size            int64   `json:"size"`
	Duration        float64 `json:"duration"`
	UploadTime      string  `json:"upload_time,omitempty"`
	OriginalVideoID *int64  `json:"original_video_id"`
}

// VideoVersion describes a quality export rendition.
type VideoVersion struct {
	ID        int64  `json:"id"`
	VideoID   int64  `json:"video_id"`
	Quality   string `json:"quality"`
	FilePath  string `json:"file_path"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Derivatives lists everything produced from one source video.
type Derivatives struct {
	VideoID  int64          `json:"video_id"`
	Videos   []Video        `json:"videos"`
	Versions []VideoVersion `json:"versions"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueDepth int            `json:"queue_depth"`
	InFlight   []int64        `json:"in_flight"`
	QueueStats map[string]int `json:"queue_stats"`
	LastError  string         `json:"last_error,omitempty"`
	LastJob    *Job           `json:"last_job,omitempty"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult is one preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queue_db_path"`
	LockFilePath string             `json:"lock_file_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Preflight    []CheckResult      `json:"preflight"`
}

// TrimRequest is the body of POST /api/videos/:id/trim.
type TrimRequest struct {
	StartTime *float64 `json:"start_time" binding:"required,gte=0"`
	EndTime   *float64 `json:"end_time" binding:"required,gte=0"`
}

// ExportRequest is the body of POST /api/videos/:id/export.
type ExportRequest struct {
	Quality string `json:"quality" binding:"required,quality"`
}

// OverlayForm is the multipart form of POST /api/videos/:id/overlays. The
// media file travels in the "file" part.
type OverlayForm struct {
	Type      string   `form:"type" binding:"required,overlay_type"`
	Position  string   `form:"position" binding:"required,position"`
	StartTime *float64 `form:"start_time" binding:"required,gte=0"`
	EndTime   *float64 `form:"end_time" binding:"required,gte=0"`
	Text      string   `form:"text"`
	FontName  string   `form:"font_name"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video Video `json:"video"`
}

// VersionResponse wraps a single quality version.
type VersionResponse struct {
	Version VideoVersion `json:"version"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind,omitempty"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}
