// Package runner executes ragmesh runs on behalf of long lived callers such as
// the HTTP server.
//
// A Runner assigns every run an id, bounds the number of concurrent runs,
// applies a per run timeout and lets callers cancel an in-flight run by id.
// The run id travels in the context (engine.WithRunID) so callbacks and logs
// can correlate the steps of one run.
package runner
