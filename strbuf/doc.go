// Package strbuf provides string pools layered on buf.Buf.
//
// Buf holds short strings (at most MaxLen bytes) behind a one-byte length and
// addresses them by ordinal through an offset index. An optional xxhash index
// turns lookups by content into a map probe.
//
// VBuf holds strings of any length behind an eight-byte length and addresses
// them by the offset of that prefix. Refs are stable under appends. Set and App
// shift every later entry and return the delta.
//
// Views returned by Get borrow pool memory and are invalidated by the next
// mutation.
package strbuf
