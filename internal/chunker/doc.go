// Package chunker divides a document into line-aligned windows for the
// entity recognition engine.
//
// The engine only accepts bounded input, so the document is cut into chunks of
// at most Size characters. Chunks always contain whole lines: cutting inside a
// line could sever an entity that straddles the cut.
//
// # Basic Usage
//
//	ix := lineindex.Build(text)
//	c, err := chunker.New(100_000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for chunk := range c.Chunks(ix.Lines()) {
//	    fmt.Printf("chunk %d: lines %d-%d, %d chars at offset %d\n",
//	        chunk.Index, chunk.FirstLine, chunk.LastLine, chunk.Length, chunk.Start)
//	}
//
// # Chunking Strategy
//
// Lines are appended to a buffer in order. Before a line is appended, the
// buffer is flushed as a chunk if it is non-empty and the line would push it
// past Size. This produces the fewest chunks possible without breaking lines.
//
// A single line longer than Size becomes a chunk of its own; it is never
// split. Callers that must respect a hard engine limit validate Size against
// that limit and accept that over-long lines are passed through whole.
//
// # Guarantees
//
//   - Chunks are contiguous and non-overlapping
//   - Concatenating all chunk texts reproduces the document exactly
//   - A chunk is longer than Size only when it holds a single line
//   - An empty document produces no chunks
package chunker
