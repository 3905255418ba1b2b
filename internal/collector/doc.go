// Package collector turns engine spans into document-level entity hits.
//
// The collector feeds each chunk to the recognition engine, shifts the
// chunk-relative spans to absolute offsets, resolves the containing line
// through the line index and attaches the surrounding context lines.
//
// # Ordering
//
// Hits are grouped by chunk in chunk order and, within a chunk, kept in the
// order the engine reported them. There is no global sort. With Workers > 1
// chunks are processed concurrently and reassembled in chunk order, so the
// output is identical to a sequential run.
//
// # Policies
//
// OnEngineError decides what happens when the engine fails on a chunk:
// "fail" aborts the whole run, "skip" logs the chunk and continues.
//
// CrossLine decides how to report a span that runs past the end of its
// starting line: "clip" limits end to the hit line, "keep" reports the
// unclipped end relative to the hit line start.
package collector
