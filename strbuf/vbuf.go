package strbuf

import (
	"bytes"
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/buf"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
)

// Ref is the offset of a VBuf entry's length prefix.
type Ref uint32

// VLenSize is the size of a VBuf length prefix.
const VLenSize = 8

// maxRef bounds the bytes a pool may hold so every offset fits a Ref.
var maxRef int64 = math.MaxUint32

// fits reports an overflow when growing a pool of used bytes by n would leave
// offsets unaddressable by a u32. n may be negative.
func fits(log *zap.Logger, used, n int) error {
	if int64(used)+int64(n) > maxRef {
		return diag.Report(log, errors.New(errors.PhaseStrBuf, errors.KindOverflow).
			Value(int64(used)+int64(n)).
			Detail("pool would exceed %d bytes", maxRef).
			Build())
	}
	return nil
}

// View borrows an entry's bytes without copying.
// It is invalidated by the next mutation of the pool.
type View struct {
	Data []byte
	Len  int
}

func (v View) String() string { return string(v.Data) }

// VBuf stores strings as [len: u64 little-endian][bytes] records in one buffer.
// Entries are addressed by the offset of their length prefix.
type VBuf struct {
	b   *buf.Buf
	log *zap.Logger
	cnt int
}

// NewVBuf creates a pool with size bytes allocated up front.
func NewVBuf(size int, opts ...rowarena.Option) (*VBuf, error) {
	cfg := rowarena.Apply(opts...)
	b, err := buf.New(size, opts...)
	if err != nil {
		return nil, err
	}
	return &VBuf{b: b, log: cfg.Logger}, nil
}

// Add appends s and returns its ref.
func (v *VBuf) Add(s string) (Ref, error) {
	if err := fits(v.log, v.b.Used(), VLenSize+len(s)); err != nil {
		return 0, err
	}
	off, region, err := v.b.Reserve(VLenSize + len(s))
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint64(region, uint64(len(s)))
	copy(region[VLenSize:], s)
	v.cnt++
	return Ref(off), nil
}

// Intern returns the ref of an existing entry equal to s, adding s when absent.
func (v *VBuf) Intern(s string) (Ref, error) {
	if r, ok := v.Find(s); ok {
		return r, nil
	}
	return v.Add(s)
}

func (v *VBuf) entryLen(ref Ref) (int, error) {
	hdr, err := v.b.Get(int(ref), VLenSize)
	if err != nil {
		return 0, diag.Report(v.log, errors.New(errors.PhaseStrBuf, errors.KindOutOfBounds).
			Value(ref).
			Detail("ref %d outside pool of %d bytes", ref, v.b.Used()).
			Build())
	}
	n := binary.LittleEndian.Uint64(hdr)
	if int(ref)+VLenSize+int(n) > v.b.Used() {
		return 0, diag.Report(v.log, errors.New(errors.PhaseStrBuf, errors.KindInvalidInput).
			Value(ref).
			Detail("ref %d does not address an entry", ref).
			Build())
	}
	return int(n), nil
}

// Get returns a zero-copy view of the entry at ref.
func (v *VBuf) Get(ref Ref) (View, error) {
	n, err := v.entryLen(ref)
	if err != nil {
		return View{}, err
	}
	data, _ := v.b.Get(int(ref)+VLenSize, n)
	return View{Data: data, Len: n}, nil
}

// String returns a copy of the entry at ref, or "" when ref is invalid.
func (v *VBuf) String(ref Ref) string {
	view, err := v.Get(ref)
	if err != nil {
		return ""
	}
	return string(view.Data)
}

// Find returns the ref of the first entry equal to s. O(n).
func (v *VBuf) Find(s string) (Ref, bool) {
	var (
		found Ref
		ok    bool
	)
	v.Each(func(ref Ref, view View) bool {
		if string(view.Data) == s {
			found, ok = ref, true
			return false
		}
		return true
	})
	return found, ok
}

// Each calls fn for every entry in insertion order until fn returns false.
func (v *VBuf) Each(fn func(ref Ref, view View) bool) {
	data := v.b.Bytes()
	for off := 0; off+VLenSize <= len(data); {
		n := int(binary.LittleEndian.Uint64(data[off:]))
		start := off + VLenSize
		if !fn(Ref(off), View{Data: data[start : start+n : start+n], Len: n}) {
			return
		}
		off = start + n
	}
}

// Set replaces the entry at ref with s. Every ref after it moves by the
// returned delta, so callers holding later refs must shift them. O(n).
func (v *VBuf) Set(ref Ref, s string) (int, error) {
	n, err := v.entryLen(ref)
	if err != nil {
		return 0, err
	}
	if err := fits(v.log, v.b.Used(), len(s)-n); err != nil {
		return 0, err
	}
	rec := make([]byte, VLenSize+len(s))
	binary.LittleEndian.PutUint64(rec, uint64(len(s)))
	copy(rec[VLenSize:], s)
	if err := v.b.Replace(int(ref), rec, VLenSize+n); err != nil {
		return 0, err
	}
	return len(s) - n, nil
}

// App appends s to the entry at ref. Later refs move by the returned delta. O(n).
func (v *VBuf) App(ref Ref, s string) (int, error) {
	n, err := v.entryLen(ref)
	if err != nil {
		return 0, err
	}
	if err := fits(v.log, v.b.Used(), len(s)); err != nil {
		return 0, err
	}
	end := int(ref) + VLenSize + n
	if err := v.b.Replace(end, []byte(s), 0); err != nil {
		return 0, err
	}
	hdr, _ := v.b.Get(int(ref), VLenSize)
	binary.LittleEndian.PutUint64(hdr, uint64(n+len(s)))
	return len(s), nil
}

// Equal reports whether the entry at ref equals p.
func (v *VBuf) Equal(ref Ref, p []byte) bool {
	view, err := v.Get(ref)
	return err == nil && bytes.Equal(view.Data, p)
}

// Len returns the number of entries.
func (v *VBuf) Len() int { return v.cnt }

// Used returns the number of bytes occupied by entries.
func (v *VBuf) Used() int { return v.b.Used() }

// Free releases the pool.
func (v *VBuf) Free() {
	v.b.Free()
	v.cnt = 0
}
