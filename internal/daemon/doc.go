// Package daemon coordinates the long-running vidpipe process.
//
// It wires configuration, the queue store, the workflow manager and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. Startup refuses to continue when a storage bucket is unusable
// and warns when ffmpeg or ffprobe are missing, since only transform jobs
// need them.
//
// Keep orchestration here: job semantics live in jobs and workflow, and the
// HTTP handlers only bind, delegate and map errors to status codes.
package daemon
