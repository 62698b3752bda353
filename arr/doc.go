// Package arr provides growable, index-addressed arrays.
//
// Arr[T] stores typed elements; Raw stores fixed-size byte elements whose size
// is only known at runtime (schema rows, enum value tables).
//
// Capacity doubles when an insert finds the array full, starting from 1.
// An element's identity is its index. Pointers and slices returned by Add and
// Get are invalidated by the next growth, so callers re-fetch by index after
// inserting.
//
// AddAll and AddUniqueAll are fixed-capacity paths: they never grow and leave
// the destination untouched when the source does not fit.
//
// Searches are linear scans and Sort is a bubble sort. Both are meant for the
// small arrays found in schemas and lookup tables.
package arr
