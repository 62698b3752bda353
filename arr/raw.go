package arr

import (
	"bytes"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
)

// NotFound is returned by searches that do not match any element.
const NotFound = -1

// Raw is a growable array of fixed-size byte elements whose size is chosen at runtime.
type Raw struct {
	cfg      rowarena.Config
	log      *zap.Logger
	block    []byte
	cap      int
	cnt      int
	elemSize int
}

// NewRaw creates an array of elemSize-byte elements with room for capHint of them.
func NewRaw(capHint, elemSize int, opts ...rowarena.Option) (*Raw, error) {
	cfg := rowarena.Apply(opts...)
	a := &Raw{cfg: cfg, log: cfg.Logger, elemSize: elemSize}

	if elemSize <= 0 {
		return nil, diag.Report(a.log, errors.InvalidInput(errors.PhaseArr, "element size must be positive"))
	}
	if capHint < 0 {
		return nil, diag.Report(a.log, errors.InvalidInput(errors.PhaseArr, "negative capacity hint"))
	}
	if capHint > 0 {
		if err := a.resize(capHint); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Raw) resize(newCap int) error {
	size := newCap * a.elemSize
	var (
		nb  []byte
		err error
	)
	if a.block == nil {
		nb, err = a.cfg.Allocator.Alloc(size)
	} else {
		nb, err = a.cfg.Allocator.Realloc(a.block, size)
	}
	if err != nil {
		return diag.Wrap(a.log, errors.PhaseArr, size, err)
	}
	a.block = nb
	a.cap = newCap
	return nil
}

func (a *Raw) grow() error {
	return a.resize(nextCap(a.cap))
}

func (a *Raw) slot(i int) []byte {
	return a.block[i*a.elemSize : (i+1)*a.elemSize : (i+1)*a.elemSize]
}

// Add appends a zeroed element and returns its index and a view of its bytes.
// Growing the array invalidates every view obtained earlier.
func (a *Raw) Add() (int, []byte, error) {
	if a.cnt == a.cap {
		if err := a.grow(); err != nil {
			return NotFound, nil, err
		}
	}
	i := a.cnt
	s := a.slot(i)
	clear(s)
	a.cnt++
	return i, s, nil
}

// Get returns a view of element i.
func (a *Raw) Get(i int) ([]byte, error) {
	if i < 0 || i >= a.cnt {
		return nil, diag.Report(a.log, errors.OutOfBounds(errors.PhaseArr, nil, i, a.cnt))
	}
	return a.slot(i), nil
}

// Set overwrites element i with v.
func (a *Raw) Set(i int, v []byte) error {
	if len(v) != a.elemSize {
		return diag.Report(a.log, errors.SizeMismatch(errors.PhaseArr, len(v), a.elemSize))
	}
	s, err := a.Get(i)
	if err != nil {
		return err
	}
	copy(s, v)
	return nil
}

// AddValue appends a copy of v.
func (a *Raw) AddValue(v []byte) (int, error) {
	if len(v) != a.elemSize {
		return NotFound, diag.Report(a.log, errors.SizeMismatch(errors.PhaseArr, len(v), a.elemSize))
	}
	i, s, err := a.Add()
	if err != nil {
		return NotFound, err
	}
	copy(s, v)
	return i, nil
}

// Find returns the index of the first element byte-equal to v. O(n).
func (a *Raw) Find(v []byte) int {
	return a.FindWith(v, nil)
}

// FindWith returns the index of the first element for which eq(candidate, v) holds. O(n).
// A nil eq compares bytes.
func (a *Raw) FindWith(v []byte, eq func(candidate, target []byte) bool) int {
	if eq == nil {
		eq = bytes.Equal
	}
	for i := 0; i < a.cnt; i++ {
		if eq(a.slot(i), v) {
			return i
		}
	}
	return NotFound
}

// AddUnique appends v unless an equal element exists.
// It returns the index of the stored element and whether it was added.
func (a *Raw) AddUnique(v []byte, eq func(candidate, target []byte) bool) (int, bool, error) {
	if i := a.FindWith(v, eq); i != NotFound {
		return i, false, nil
	}
	i, err := a.AddValue(v)
	if err != nil {
		return NotFound, false, err
	}
	return i, true, nil
}

// AddAll appends every element of src. It never grows the array: when the
// remaining capacity is too small nothing is written.
func (a *Raw) AddAll(src *Raw) error {
	if src.elemSize != a.elemSize {
		return diag.Report(a.log, errors.SizeMismatch(errors.PhaseArr, src.elemSize, a.elemSize))
	}
	if a.cnt+src.cnt > a.cap {
		return diag.Report(a.log, errors.CapacityExceeded(errors.PhaseArr, a.cnt+src.cnt, a.cap))
	}
	n := src.cnt * a.elemSize
	copy(a.block[a.cnt*a.elemSize:], src.block[:n])
	a.cnt += src.cnt
	return nil
}

// AddUniqueAll appends the elements of src not already present. Like AddAll it
// never grows and writes nothing when the unique elements do not fit.
func (a *Raw) AddUniqueAll(src *Raw, eq func(candidate, target []byte) bool) error {
	if src.elemSize != a.elemSize {
		return diag.Report(a.log, errors.SizeMismatch(errors.PhaseArr, src.elemSize, a.elemSize))
	}
	if eq == nil {
		eq = bytes.Equal
	}

	fresh := make([]int, 0, src.cnt)
	for i := 0; i < src.cnt; i++ {
		v := src.slot(i)
		if a.FindWith(v, eq) != NotFound {
			continue
		}
		dup := false
		for _, j := range fresh {
			if eq(src.slot(j), v) {
				dup = true
				break
			}
		}
		if !dup {
			fresh = append(fresh, i)
		}
	}

	if a.cnt+len(fresh) > a.cap {
		return diag.Report(a.log, errors.CapacityExceeded(errors.PhaseArr, a.cnt+len(fresh), a.cap))
	}
	for _, i := range fresh {
		copy(a.slot(a.cnt), src.slot(i))
		a.cnt++
	}
	return nil
}

// MergeAll returns a new array holding the elements of a followed by those of b.
func MergeAll(a, b *Raw) (*Raw, error) {
	if a.elemSize != b.elemSize {
		return nil, diag.Report(a.log, errors.SizeMismatch(errors.PhaseArr, b.elemSize, a.elemSize))
	}
	m, err := NewRaw(max(a.cnt+b.cnt, 1), a.elemSize, a.cfg.Options()...)
	if err != nil {
		return nil, err
	}
	_ = m.AddAll(a)
	_ = m.AddAll(b)
	return m, nil
}

// MergeUnique returns a new array holding the union of a and b without duplicates.
func MergeUnique(a, b *Raw, eq func(candidate, target []byte) bool) (*Raw, error) {
	if a.elemSize != b.elemSize {
		return nil, diag.Report(a.log, errors.SizeMismatch(errors.PhaseArr, b.elemSize, a.elemSize))
	}
	m, err := NewRaw(max(a.cnt+b.cnt, 1), a.elemSize, a.cfg.Options()...)
	if err != nil {
		return nil, err
	}
	_ = m.AddUniqueAll(a, eq)
	_ = m.AddUniqueAll(b, eq)
	return m, nil
}

// Sort orders the elements with a bubble sort. cmp returns a negative number
// when x sorts before y, zero when they are equal and a positive number otherwise.
// The sort is stable. O(n²).
func (a *Raw) Sort(cmp func(x, y []byte) int) {
	for n := a.cnt; n > 1; n-- {
		swapped := false
		for i := 1; i < n; i++ {
			x, y := a.slot(i-1), a.slot(i)
			if cmp(x, y) > 0 {
				for k := range x {
					x[k], y[k] = y[k], x[k]
				}
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// Print writes every element through fn, one per line.
func (a *Raw) Print(w io.Writer, fn func(w io.Writer, i int, elem []byte) error) error {
	for i := 0; i < a.cnt; i++ {
		if err := fn(w, i, a.slot(i)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// All iterates over index/view pairs in order.
// The loop body must not grow the array.
func (a *Raw) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		for i := 0; i < a.cnt; i++ {
			if !yield(i, a.slot(i)) {
				return
			}
		}
	}
}

// Len returns the number of elements.
func (a *Raw) Len() int { return a.cnt }

// Cap returns the number of elements the array holds before growing.
func (a *Raw) Cap() int { return a.cap }

// ElemSize returns the element size in bytes.
func (a *Raw) ElemSize() int { return a.elemSize }

// Bytes returns the live elements as one contiguous view.
func (a *Raw) Bytes() []byte {
	return a.block[:a.cnt*a.elemSize]
}

// Truncate drops every element at index n and above.
func (a *Raw) Truncate(n int) {
	if n >= 0 && n < a.cnt {
		a.cnt = n
	}
}

// Free releases the backing store. The array is empty and reusable afterwards.
func (a *Raw) Free() {
	if a.block != nil {
		a.cfg.Allocator.Free(a.block)
	}
	a.block = nil
	a.cap = 0
	a.cnt = 0
}

func nextCap(c int) int {
	if c == 0 {
		return 1
	}
	return c * 2
}
