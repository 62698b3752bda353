// Package buf provides an append-only growable byte buffer.
//
// Add returns the offset of the appended region. Offsets never move when the
// buffer grows; only Replace shifts the bytes that follow the replaced region.
package buf

import (
	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
)

// Buf is an append-only byte store.
type Buf struct {
	cfg  rowarena.Config
	log  *zap.Logger
	data []byte // len(data) is the allocated size
	used int
}

// New creates a buffer with size bytes allocated up front.
func New(size int, opts ...rowarena.Option) (*Buf, error) {
	cfg := rowarena.Apply(opts...)
	b := &Buf{cfg: cfg, log: cfg.Logger}
	if size < 0 {
		return nil, diag.Report(b.log, errors.InvalidInput(errors.PhaseBuf, "negative size"))
	}
	if size > 0 {
		if err := b.resize(size); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Buf) resize(size int) error {
	var (
		nd  []byte
		err error
	)
	if b.data == nil {
		nd, err = b.cfg.Allocator.Alloc(size)
	} else {
		nd, err = b.cfg.Allocator.Realloc(b.data, size)
	}
	if err != nil {
		return diag.Wrap(b.log, errors.PhaseBuf, size, err)
	}
	b.data = nd
	return nil
}

// ensure makes room for n more bytes, growing to twice the required size.
func (b *Buf) ensure(n int) error {
	need := b.used + n
	if need <= len(b.data) {
		return nil
	}
	return b.resize(max(need, need*2))
}

// Reserve appends n zeroed bytes and returns their offset and a view of them.
// The view is invalidated by the next growth; the offset is not.
func (b *Buf) Reserve(n int) (int, []byte, error) {
	if n < 0 {
		return 0, nil, diag.Report(b.log, errors.InvalidInput(errors.PhaseBuf, "negative length"))
	}
	if err := b.ensure(n); err != nil {
		return 0, nil, err
	}
	off := b.used
	region := b.data[off : off+n : off+n]
	clear(region)
	b.used += n
	return off, region, nil
}

// Add appends p and returns its offset.
func (b *Buf) Add(p []byte) (int, error) {
	off, region, err := b.Reserve(len(p))
	if err != nil {
		return 0, err
	}
	copy(region, p)
	return off, nil
}

// Get returns a view of n bytes at off.
func (b *Buf) Get(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > b.used {
		return nil, diag.Report(b.log, errors.OutOfBounds(errors.PhaseBuf, nil, off+n, b.used))
	}
	return b.data[off : off+n : off+n], nil
}

// Replace splices p over the oldLen bytes at off, shifting everything after
// the region by len(p)-oldLen. The buffer grows first when p is longer. O(n).
func (b *Buf) Replace(off int, p []byte, oldLen int) error {
	if off < 0 || oldLen < 0 || off+oldLen > b.used {
		return diag.Report(b.log, errors.OutOfBounds(errors.PhaseBuf, nil, off+oldLen, b.used))
	}
	newLen := len(p)
	if newLen > oldLen {
		if err := b.ensure(newLen - oldLen); err != nil {
			return err
		}
	}
	tail := b.data[off+oldLen : b.used]
	copy(b.data[off+newLen:], tail)
	copy(b.data[off:], p)

	b.used += newLen - oldLen
	if newLen < oldLen {
		clear(b.data[b.used : b.used+oldLen-newLen])
	}
	return nil
}

// Bytes returns the filled part of the buffer.
func (b *Buf) Bytes() []byte {
	return b.data[:b.used:b.used]
}

// Used returns the number of filled bytes.
func (b *Buf) Used() int { return b.used }

// Size returns the number of allocated bytes.
func (b *Buf) Size() int { return len(b.data) }

// Reset empties the buffer but keeps its allocation.
func (b *Buf) Reset() {
	clear(b.data[:b.used])
	b.used = 0
}

// Free releases the allocation.
func (b *Buf) Free() {
	if b.data != nil {
		b.cfg.Allocator.Free(b.data)
	}
	b.data = nil
	b.used = 0
}
