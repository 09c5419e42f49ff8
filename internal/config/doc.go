// Package config loads, normalizes, and validates vidpipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIDPIPE_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need: bucket directories, worker pool sizing, tool binaries, and API auth.
package config
