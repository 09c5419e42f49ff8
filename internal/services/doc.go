// Package services defines shared utilities consumed by the job pipeline and
// its outer surfaces (HTTP API, CLI).
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job types, worker slots, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper. Markers follow the
//     pipeline taxonomy: validation, not found, unsupported operation,
//     external tool, io, and metadata extraction failures.
//
// Synchronous callers map markers onto responses (see Kind); the worker engine
// records every marker the same way, as a failed job.
package services
