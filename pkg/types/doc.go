// Package types provides shared type definitions for entityscan.
//
// This package defines the domain types passed between the line index, the
// chunker, the entity collector and the output formatter.
//
// # Core Types
//
// Line is one terminator-inclusive line of the analyzed document together with
// its absolute start offset:
//
//	line := types.Line{Index: 3, Content: "Berlin\n", Start: 120, Length: 7}
//
// Chunk is a line-aligned window of the document handed to the recognition
// engine as a single unit:
//
//	chunk := types.Chunk{Text: "Hans Müller wohnt in Berlin.\n", Start: 0}
//
// RawSpan is what the engine reports, relative to the chunk text. EntityHit is
// the resolved record in document coordinates, including context lines:
//
//	hit := types.EntityHit{
//	    Text:            "Hans Müller",
//	    Label:           "PER",
//	    HitLinePosition: 0,
//	    Start:           0,
//	    End:             11,
//	    HitLine:         "Hans Müller wohnt in Berlin.",
//	}
//
// # Offsets
//
// All offsets and lengths count Unicode code points, not bytes. A document
// containing "Müller" therefore has the same offsets no matter how the text is
// encoded on disk.
//
// # Line Numbering
//
// HitLinePosition is the 0-based index of the line that contains the start of
// the entity. The first line of a document is line 0.
package types
