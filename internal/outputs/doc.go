// Package outputs allocates the directories tasks write their outputs to.
//
// # Layout
//
// Every task gets a cache directory under the workspace output root:
//
//	<output root>/<digest of the input directory>/<name>[-variant...]
//
// The digest is the first twelve hex characters of the SHA-256 of the input
// directory relative to the workspace root, so two packages with a task of
// the same name never collide while the layout stays flat.
//
// When the workspace enables links, a symbolic link named after the task is
// placed in the output folder of the input directory and points at the
// cache directory:
//
//	<input dir>/_output_/<name>[-variant...] -> <cache directory>
//
// # Concurrency
//
// Allocations are memoized with a sync.Map keyed by the full request, so
// the executor can ask for the same task from several goroutines and the
// filesystem work happens once.
package outputs
