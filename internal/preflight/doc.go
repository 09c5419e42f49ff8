// Package preflight provides readiness checks for the storage buckets and
// external tools vidpipe depends on.
//
// The daemon runs RunAll once at startup and refuses to start when a bucket
// directory is unusable; the status endpoint and `vidpipe status` render the
// same results alongside CheckSystemDeps.
package preflight
