package command

import (
	"fmt"
	"math"
	"strings"

	"vidpipe/internal/queue"
	"vidpipe/internal/services"
)

// Operation is one of Trim, TextOverlay, MediaOverlay or QualityExport.
type Operation interface {
	JobType() queue.JobType
	isOperation()
}

// Window is a half-open visibility interval in seconds.
type Window struct {
	Start float64
	End   float64
}

// NewWindow validates 0 <= start < end.
func NewWindow(start, end float64) (Window, error) {
	if err := validateRange(start, end); err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// Trim copies [Start, End) of the source without re-encoding.
type Trim struct {
	Start float64
	End   float64
}

// NewTrim validates the clip range.
func NewTrim(start, end float64) (Trim, error) {
	if err := validateRange(start, end); err != nil {
		return Trim{}, err
	}
	return Trim{Start: start, End: end}, nil
}

// Duration is the length of the trimmed clip.
func (t Trim) Duration() float64 { return t.End - t.Start }

func (Trim) JobType() queue.JobType { return queue.JobTypeTrim }
func (Trim) isOperation()           {}

// TextOverlay draws literal text at an anchored position. FontFile is empty
// when the default font should be used.
type TextOverlay struct {
	Text     string
	Position queue.Position
	Window   Window
	FontFile string
}

// NewTextOverlay validates text content and position.
func NewTextOverlay(text string, position queue.Position, window Window, fontFile string) (TextOverlay, error) {
	if strings.TrimSpace(text) == "" {
		return TextOverlay{}, services.Wrap(services.ErrValidation, "command", "text overlay", "text content is required", nil)
	}
	if err := validatePosition(position); err != nil {
		return TextOverlay{}, err
	}
	return TextOverlay{Text: text, Position: position, Window: window, FontFile: strings.TrimSpace(fontFile)}, nil
}

func (TextOverlay) JobType() queue.JobType { return queue.JobTypeOverlay }
func (TextOverlay) isOperation()           {}

// MediaOverlay composites a second input (image, video or watermark) onto
// the source. SecondaryAudio is only meaningful for video inputs.
type MediaOverlay struct {
	Kind           queue.OverlayType
	MediaPath      string
	Position       queue.Position
	Window         Window
	SecondaryAudio bool
}

// NewMediaOverlay validates the media kind, path and position.
func NewMediaOverlay(kind queue.OverlayType, mediaPath string, position queue.Position, window Window, secondaryAudio bool) (MediaOverlay, error) {
	switch kind {
	case queue.OverlayImage, queue.OverlayVideo, queue.OverlayWatermark:
	default:
		return MediaOverlay{}, services.Wrap(services.ErrUnsupported, "command", "media overlay",
			fmt.Sprintf("overlay type %q", kind), nil)
	}
	if strings.TrimSpace(mediaPath) == "" {
		return MediaOverlay{}, services.Wrap(services.ErrValidation, "command", "media overlay", "media path is required", nil)
	}
	if err := validatePosition(position); err != nil {
		return MediaOverlay{}, err
	}
	return MediaOverlay{
		Kind:           kind,
		MediaPath:      mediaPath,
		Position:       position,
		Window:         window,
		SecondaryAudio: kind == queue.OverlayVideo && secondaryAudio,
	}, nil
}

func (m MediaOverlay) JobType() queue.JobType { return m.Kind.JobType() }
func (MediaOverlay) isOperation()             {}

// QualityExport rescales the source to the quality's width, keeping aspect.
type QualityExport struct {
	Quality queue.Quality
}

// NewQualityExport validates the target quality.
func NewQualityExport(quality queue.Quality) (QualityExport, error) {
	if quality.Width() == 0 {
		return QualityExport{}, services.Wrap(services.ErrValidation, "command", "quality export",
			fmt.Sprintf("unsupported quality %q", quality), nil)
	}
	return QualityExport{Quality: quality}, nil
}

func (QualityExport) JobType() queue.JobType { return queue.JobTypeQualityExport }
func (QualityExport) isOperation()           {}

// OverlayInputs carries the values the caller resolved from disk for an
// overlay row.
type OverlayInputs struct {
	MediaPath      string
	FontFile       string
	SecondaryAudio bool
}

// FromOverlay builds the variant for a stored overlay. Unknown overlay types
// yield services.ErrUnsupported.
func FromOverlay(overlay *queue.Overlay, inputs OverlayInputs) (Operation, error) {
	if overlay == nil {
		return nil, services.Wrap(services.ErrNotFound, "command", "overlay", "overlay record missing", nil)
	}
	window, err := NewWindow(overlay.StartTime, overlay.EndTime)
	if err != nil {
		return nil, err
	}
	switch overlay.Type {
	case queue.OverlayText:
		return NewTextOverlay(overlay.Content, overlay.Position, window, inputs.FontFile)
	case queue.OverlayImage, queue.OverlayVideo, queue.OverlayWatermark:
		return NewMediaOverlay(overlay.Type, inputs.MediaPath, overlay.Position, window, inputs.SecondaryAudio)
	default:
		return nil, services.Wrap(services.ErrUnsupported, "command", "overlay",
			fmt.Sprintf("overlay type %q", overlay.Type), nil)
	}
}

func validateRange(start, end float64) error {
	switch {
	case math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0):
		return services.Wrap(services.ErrValidation, "command", "time range", "times must be finite", nil)
	case start < 0:
		return services.Wrap(services.ErrValidation, "command", "time range", "start time must not be negative", nil)
	case start >= end:
		return services.Wrap(services.ErrValidation, "command", "time range",
			fmt.Sprintf("start time %s must be before end time %s", formatSeconds(start), formatSeconds(end)), nil)
	}
	return nil
}

func validatePosition(position queue.Position) error {
	if _, ok := queue.ParsePosition(string(position)); !ok || string(position) != strings.TrimSpace(string(position)) {
		return services.Wrap(services.ErrValidation, "command", "position",
			fmt.Sprintf("unsupported position %q", position), nil)
	}
	return nil
}
