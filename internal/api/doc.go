// Package api defines wire-format types and converters for the HTTP API. It
// translates queue models into transport DTOs so handlers and CLI output do
// not couple to storage types.
//
// # Key Types
//
// Job, Video, VideoVersion: snake_case JSON mirrors of the queue rows.
// Nullable columns (video_id, original_video_id, trim times) are pointers so
// they encode as null rather than zero.
//
// DaemonStatus: daemon running state, workflow summary, dependency and
// preflight results.
//
// TrimRequest, ExportRequest, OverlayForm: request bodies bound by gin. The
// position, quality and overlay_type binding tags are registered by
// RegisterValidators.
//
// Timestamps use RFC3339 with milliseconds in UTC.
package api
