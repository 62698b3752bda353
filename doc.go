// Package rowarena provides arena-indexed containers and a schema engine for
// packing heterogeneous records into flat binary rows.
//
// Every container keeps its elements in one contiguous store obtained from a
// pluggable Allocator and refers to them by integer index rather than address.
//
// # Architecture Overview
//
//	rowarena/            Root package with the Allocator interface and container options
//	├── arr/             Growable arrays (typed Arr[T] and byte-stride Raw)
//	├── buf/             Append-only byte buffer with stable offsets
//	├── strbuf/          Length-prefixed string pools (VBuf, Buf)
//	├── list/            Intrusive singly-linked list over Arr
//	├── tree/            Intrusive N-ary tree over List
//	├── schema/          Field defs, layouts and layout maps
//	├── tbl/             Schema-bound row table with a string pool
//	├── wasmmem/         Allocator backed by WebAssembly linear memory
//	├── witschema/       Schema construction from WIT type definitions
//	├── errors/          Structured error types
//	├── internal/        Diagnostics and the YAML table loader
//	└── cmd/tblview/     Print or browse a table description
//
// # Quick Start
//
//	t, _ := tbl.New()
//	id, _ := t.AddDef(schema.Int, "id", 4, 0)
//	name, _ := t.AddDef(schema.Str, "name", 0, 0)
//	l0, _ := t.AddLayout(2)
//	t.AddField(l0, id, 0)
//	t.AddField(l0, name, 0)
//
//	t.InitRows(16)
//	row, _ := t.AddRow()
//	t.SetCellUint(row, l0, 0, 42)
//	t.SetCellStr(row, l0, 1, "felix")
//	t.Print(os.Stdout)
//
// # Handles and Invalidation
//
// Indexes stay valid for the lifetime of a container. Slot views (slices and
// pointers returned by Get/Add) stay valid only until the next operation that
// grows the backing store. Re-fetch by index after any insert.
//
// Removal never recycles slots.
//
// # Thread Safety
//
// Containers are not safe for concurrent use. Guard each instance with
// external synchronization or keep it confined to one goroutine.
//
// # Diagnostics
//
// Invariant violations (bad index, allocation failure, depth overflow) are
// returned as *errors.Error and also logged through the zap.Logger supplied
// with WithLogger. Nothing in this module terminates the process.
package rowarena
