// Package engine hosts the precompiled, sandboxed analysis module.
//
// The module itself is supplied by the embedding environment; this package
// only owns the boundary: loading the module image from disk, exposing it
// as a read-only virtual file, running the module's single entry call on a
// dedicated goroutine, and reporting its exit.
package engine
