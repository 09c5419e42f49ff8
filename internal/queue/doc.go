// Package queue persists videos, jobs, overlays, and quality versions in
// SQLite and exposes the job lifecycle transitions.
//
// Jobs only move forward: pending, then processing, then done or failed.
// Claim is a conditional update so at most one worker ever owns a job, and
// CommitVideo/CommitVersion create the derived row in the same transaction
// that marks the job done. Derived rows are keyed by their producing job, so a
// repeated commit for the same job is a no-op rather than a duplicate.
//
// Videos form a forest through original_video_id. The store never walks that
// chain; derivatives are listed with a single join over the jobs that name a
// source video.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
