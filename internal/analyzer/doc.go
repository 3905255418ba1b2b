// Package analyzer runs the full analysis pipeline for files, in-memory text
// and directory trees.
//
// A document is read whole, indexed by line, split into line-aligned chunks
// and handed to the collector, which calls the engine once per chunk. When an
// export storage is configured the finished report is written to it.
//
// # Validation
//
// New rejects a chunk size larger than the engine's maximum input length,
// so a misconfiguration is reported before the engine sees any text.
//
// # Directory scans
//
// AnalyzeDir walks a tree in lexical order and emits one report per file.
// Only one directory scan may run per Analyzer; a second concurrent call
// returns ErrScanInProgress.
package analyzer
