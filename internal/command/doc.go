// Package command builds ffmpeg invocations for video jobs.
//
// Each job operation is a tagged variant (Trim, TextOverlay, MediaOverlay,
// QualityExport) whose constructor validates the fields that variant needs.
// Synthesize turns a Request into the argument list and output path for a
// single ffmpeg run. ffmpeg writes to a ".partial-" work path next to the
// final output so a failed run never occupies the final name. Synthesize
// performs no I/O; callers resolve source paths, font files and
// secondary-input audio presence beforehand.
//
// Position anchors are expressed relative to the rendered element: drawtext
// uses tw/th, the overlay filter uses the overlay input's w/h. Visibility
// windows are half-open, [start, end).
package command
