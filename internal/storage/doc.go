// Package storage addresses media files by bucket and filename.
//
// The four buckets (uploads, processed, overlays, fonts) map onto the
// configured directories. Incoming bytes are first written to a partial
// file in the target bucket and renamed into place once the caller's
// database transaction is ready, so a failed request never leaves a
// half-written file under a final name.
package storage
