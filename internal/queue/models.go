package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusDone, StatusFailed}

// AllStatuses returns every job status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	return parseEnum(value, allStatuses)
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// JobType names the operation a job performs.
type JobType string

const (
	JobTypeUpload        JobType = "upload"
	JobTypeTrim          JobType = "trim"
	JobTypeOverlay       JobType = "overlay"
	JobTypeWatermark     JobType = "watermark"
	JobTypeQualityExport JobType = "quality_export"
)

var allJobTypes = []JobType{JobTypeUpload, JobTypeTrim, JobTypeOverlay, JobTypeWatermark, JobTypeQualityExport}

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	return parseEnum(value, allJobTypes)
}

// OverlayType is the kind of element composited onto a video.
type OverlayType string

const (
	OverlayText      OverlayType = "text"
	OverlayImage     OverlayType = "image"
	OverlayVideo     OverlayType = "video"
	OverlayWatermark OverlayType = "watermark"
)

var allOverlayTypes = []OverlayType{OverlayText, OverlayImage, OverlayVideo, OverlayWatermark}

// ParseOverlayType converts a string into a known OverlayType.
func ParseOverlayType(value string) (OverlayType, bool) {
	return parseEnum(value, allOverlayTypes)
}

// JobType returns the job type produced when this overlay is submitted.
func (t OverlayType) JobType() JobType {
	if t == OverlayWatermark {
		return JobTypeWatermark
	}
	return JobTypeOverlay
}

// Position anchors an overlay inside the frame.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

var allPositions = []Position{PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight, PositionCenter}

// AllPositions returns every supported overlay position.
func AllPositions() []Position {
	out := make([]Position, len(allPositions))
	copy(out, allPositions)
	return out
}

// ParsePosition converts a string into a known Position.
func ParsePosition(value string) (Position, bool) {
	return parseEnum(value, allPositions)
}

// Quality is a quality-export target.
type Quality string

const (
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
)

var qualityWidths = map[Quality]int{
	Quality1080p: 1920,
	Quality720p:  1280,
	Quality480p:  854,
}

var allQualities = []Quality{Quality1080p, Quality720p, Quality480p}

// ParseQuality converts a string into a known Quality.
func ParseQuality(value string) (Quality, bool) {
	return parseEnum(value, allQualities)
}

// Width returns the target frame width, or 0 for an unknown quality.
func (q Quality) Width() int {
	return qualityWidths[q]
}

func parseEnum[T ~string](value string, known []T) (T, bool) {
	normalized := T(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	for _, candidate := range known {
		if candidate == normalized {
			return normalized, true
		}
	}
	return normalized, false
}

// Video is an uploaded or derived media asset. OriginalVideoID is zero for
// uploaded (root) videos.
type Video struct {
	ID              int64
	Filename        string
	Size            int64
	Duration        float64
	UploadTime      time.Time
	OriginalVideoID int64
	ProducingJobID  int64
}

// IsDerived reports whether the video was produced from another video.
func (v Video) IsDerived() bool {
	return v.OriginalVideoID != 0
}

// Job is a unit of asynchronous work. VideoID is zero until an upload job
// completes; for every other type it names the source video.
type Job struct {
	ID           int64
	VideoID      int64
	Type         JobType
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	OutputFile   string
	StartTime    *float64
	EndTime      *float64
	OverlayID    int64
	Quality      Quality
	SourceFile   string
	ErrorMessage string
}

// Overlay is a declarative element composited onto a video within
// [StartTime, EndTime). Content holds literal text for text overlays and the
// stored media filename otherwise.
type Overlay struct {
	ID        int64
	VideoID   int64
	Type      OverlayType
	Content   string
	Position  Position
	StartTime float64
	EndTime   float64
	FontName  string
	CreatedAt time.Time
}

// VideoVersion is a quality-export rendition of a video.
type VideoVersion struct {
	ID        int64
	VideoID   int64
	Quality   Quality
	FilePath  string
	JobID     int64
	CreatedAt time.Time
}

// Derivatives groups everything produced from one source video.
type Derivatives struct {
	Videos   []*Video
	Versions []*VideoVersion
}
