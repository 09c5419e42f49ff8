// Package jobs is the request layer in front of the job queue.
//
// Service validates submissions (time ranges, overlay fields, qualities,
// source video existence) before any row is written, stages uploaded bytes
// in the matching storage bucket within the job creation transaction, and
// wakes the worker engine. Lookups translate missing rows into
// services.ErrNotFound so transports can map them uniformly.
package jobs
