// Command vidpipe is the operator CLI. It manages configuration, runs the
// daemon in the foreground, and submits and inspects jobs.
//
// Job commands open the queue store directly, so they work whether or not
// the daemon is running; pending jobs are executed once a daemon picks them
// up on its next poll. `vidpipe status` asks the running daemon over its
// HTTP API and falls back to local queue statistics when it is unreachable.
package main
