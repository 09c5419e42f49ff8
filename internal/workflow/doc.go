// Package workflow runs pending jobs on a fixed worker pool.
//
// The Manager owns one dispatcher goroutine and cfg.Workflow.Workers worker
// goroutines connected by a bounded channel of cfg.Workflow.QueueSize job
// ids. The dispatcher polls the queue for pending jobs every
// queue_poll_interval seconds, or immediately after Notify, and never
// enqueues an id that is already queued or running. A worker claims each
// id with a compare-and-swap on status, so two workers can never run the
// same job, then drives it to done or failed.
//
// Shutdown only takes effect before a claim. Once a job is claimed the
// worker runs it to a terminal state (ffmpeg and ffprobe calls are not
// interrupted), and Stop waits for that to happen. A process crash between
// claim and the terminal write leaves the job in processing; nothing here
// reconciles it (see queue.Store.FailStaleProcessing).
package workflow
