// Package lineindex maps absolute character offsets in a document to lines.
//
// Build splits the text into terminator-inclusive lines and records the start
// offset of every line. Because terminators are kept, concatenating the lines
// reproduces the input byte-for-byte and every offset stays exact.
//
//	ix := lineindex.Build("Hans Müller\nwohnt in Berlin.\n")
//	i := ix.Lookup(14)         // 1
//	prev, hit, next := ix.Context(i)
//
// Lookup is a binary search over the sorted start offsets, so resolving an
// entity costs O(log n) regardless of where in the document it was found.
//
// Recognized terminators are "\n", "\r\n" and a lone "\r".
package lineindex
