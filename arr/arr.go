package arr

import (
	"bytes"
	"io"
	"iter"
	"reflect"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
)

// Arr is a growable array of T addressed by index.
//
// When T holds no Go pointers its elements live in memory obtained from the
// configured Allocator. Otherwise they live in a garbage-collected slice; the
// growth policy and invalidation rules are the same either way.
type Arr[T any] struct {
	cfg   rowarena.Config
	log   *zap.Logger
	block []byte
	data  []T // len(data) == capacity
	cnt   int
	raw   bool
}

// New creates an array with room for capHint elements.
func New[T any](capHint int, opts ...rowarena.Option) (*Arr[T], error) {
	cfg := rowarena.Apply(opts...)
	var zero T
	a := &Arr[T]{
		cfg: cfg,
		log: cfg.Logger,
		raw: unsafe.Sizeof(zero) > 0 && !hasPointers(reflect.TypeOf(&zero).Elem()),
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

func (a *Arr[T]) resize(newCap int) error {
	if !a.raw {
		nd := make([]T, newCap)
		copy(nd, a.data[:a.cnt])
		a.data = nd
		return nil
	}

	var zero T
	size := newCap * int(unsafe.Sizeof(zero))
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
	a.data = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(nb))), newCap)
	return nil
}

// Add appends a zero element and returns its index and a pointer to it.
// Growing the array invalidates every pointer obtained earlier.
func (a *Arr[T]) Add() (int, *T, error) {
	if a.cnt == len(a.data) {
		if err := a.resize(nextCap(len(a.data))); err != nil {
			return NotFound, nil, err
		}
	}
	i := a.cnt
	var zero T
	a.data[i] = zero
	a.cnt++
	return i, &a.data[i], nil
}

// Get returns a pointer to element i.
func (a *Arr[T]) Get(i int) (*T, error) {
	if i < 0 || i >= a.cnt {
		return nil, diag.Report(a.log, errors.OutOfBounds(errors.PhaseArr, nil, i, a.cnt))
	}
	return &a.data[i], nil
}

// Value returns a copy of element i.
func (a *Arr[T]) Value(i int) (T, error) {
	p, err := a.Get(i)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// Set overwrites element i.
func (a *Arr[T]) Set(i int, v T) error {
	p, err := a.Get(i)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// AddValue appends v.
func (a *Arr[T]) AddValue(v T) (int, error) {
	i, p, err := a.Add()
	if err != nil {
		return NotFound, err
	}
	*p = v
	return i, nil
}

// Find returns the index of the first element equal to v. O(n).
func (a *Arr[T]) Find(v T) int {
	return a.FindWith(v, nil)
}

// FindWith returns the index of the first element for which eq(candidate, v) holds. O(n).
//
// A nil eq compares pointer-free elements by their in-memory bytes, so padded
// structs need an explicit eq. Elements holding pointers are compared with ==;
// when T is not comparable a nil eq logs an error and nothing is found.
func (a *Arr[T]) FindWith(v T, eq func(candidate, target *T) bool) int {
	eq, err := a.equal(eq)
	if err != nil {
		return NotFound
	}
	return a.find(&v, eq)
}

func (a *Arr[T]) find(v *T, eq func(candidate, target *T) bool) int {
	for i := 0; i < a.cnt; i++ {
		if eq(&a.data[i], v) {
			return i
		}
	}
	return NotFound
}

// equal resolves the comparator used when the caller passes a nil eq.
func (a *Arr[T]) equal(eq func(candidate, target *T) bool) (func(candidate, target *T) bool, error) {
	switch {
	case eq != nil:
		return eq, nil
	case a.raw:
		return bytesEqual[T], nil
	case reflect.TypeFor[T]().Comparable():
		return valueEqual[T], nil
	}
	return nil, diag.Report(a.log, errors.New(errors.PhaseArr, errors.KindInvalidInput).
		Value(reflect.TypeFor[T]().String()).
		Detail("%s is not comparable, pass an explicit eq", reflect.TypeFor[T]()).
		Build())
}

// AddUnique appends v unless an equal element exists.
// It returns the index of the stored element and whether it was added.
func (a *Arr[T]) AddUnique(v T, eq func(candidate, target *T) bool) (int, bool, error) {
	eq, err := a.equal(eq)
	if err != nil {
		return NotFound, false, err
	}
	if i := a.find(&v, eq); i != NotFound {
		return i, false, nil
	}
	i, err := a.AddValue(v)
	if err != nil {
		return NotFound, false, err
	}
	return i, true, nil
}

// AddAll appends every element of src without growing. When the remaining
// capacity is too small nothing is written.
func (a *Arr[T]) AddAll(src *Arr[T]) error {
	if a.cnt+src.cnt > len(a.data) {
		return diag.Report(a.log, errors.CapacityExceeded(errors.PhaseArr, a.cnt+src.cnt, len(a.data)))
	}
	copy(a.data[a.cnt:], src.data[:src.cnt])
	a.cnt += src.cnt
	return nil
}

// AddUniqueAll appends the elements of src not already present, without growing.
func (a *Arr[T]) AddUniqueAll(src *Arr[T], eq func(candidate, target *T) bool) error {
	eq, err := a.equal(eq)
	if err != nil {
		return err
	}

	fresh := make([]int, 0, src.cnt)
	for i := 0; i < src.cnt; i++ {
		v := &src.data[i]
		if a.find(v, eq) != NotFound {
			continue
		}
		dup := false
		for _, j := range fresh {
			if eq(&src.data[j], v) {
				dup = true
				break
			}
		}
		if !dup {
			fresh = append(fresh, i)
		}
	}

	if a.cnt+len(fresh) > len(a.data) {
		return diag.Report(a.log, errors.CapacityExceeded(errors.PhaseArr, a.cnt+len(fresh), len(a.data)))
	}
	for _, i := range fresh {
		a.data[a.cnt] = src.data[i]
		a.cnt++
	}
	return nil
}

// Merge returns a new array holding the elements of a followed by those of b.
func Merge[T any](a, b *Arr[T]) (*Arr[T], error) {
	m, err := New[T](max(a.cnt+b.cnt, 1), a.cfg.Options()...)
	if err != nil {
		return nil, err
	}
	_ = m.AddAll(a)
	_ = m.AddAll(b)
	return m, nil
}

// MergeUniq returns a new array holding the union of a and b without duplicates.
func MergeUniq[T any](a, b *Arr[T], eq func(candidate, target *T) bool) (*Arr[T], error) {
	m, err := New[T](max(a.cnt+b.cnt, 1), a.cfg.Options()...)
	if err != nil {
		return nil, err
	}
	for _, src := range []*Arr[T]{a, b} {
		if err := m.AddUniqueAll(src, eq); err != nil {
			m.Free()
			return nil, err
		}
	}
	return m, nil
}

// Sort orders the elements with a stable bubble sort. O(n²).
func (a *Arr[T]) Sort(cmp func(x, y T) int) {
	for n := a.cnt; n > 1; n-- {
		swapped := false
		for i := 1; i < n; i++ {
			if cmp(a.data[i-1], a.data[i]) > 0 {
				a.data[i-1], a.data[i] = a.data[i], a.data[i-1]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// Print writes every element through fn, one per line.
func (a *Arr[T]) Print(w io.Writer, fn func(w io.Writer, i int, v *T) error) error {
	for i := 0; i < a.cnt; i++ {
		if err := fn(w, i, &a.data[i]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// All iterates over index/pointer pairs in order.
// The loop body must not grow the array.
func (a *Arr[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		for i := 0; i < a.cnt; i++ {
			if !yield(i, &a.data[i]) {
				return
			}
		}
	}
}

// Slice returns the live elements. The view is invalidated by growth.
func (a *Arr[T]) Slice() []T {
	return a.data[:a.cnt:a.cnt]
}

// Len returns the number of elements.
func (a *Arr[T]) Len() int { return a.cnt }

// Cap returns the number of elements the array holds before growing.
func (a *Arr[T]) Cap() int { return len(a.data) }

// Truncate drops every element at index n and above.
func (a *Arr[T]) Truncate(n int) {
	if n >= 0 && n < a.cnt {
		a.cnt = n
	}
}

// Free releases the backing store. The array is empty and reusable afterwards.
func (a *Arr[T]) Free() {
	if a.block != nil {
		a.cfg.Allocator.Free(a.block)
	}
	a.block = nil
	a.data = nil
	a.cnt = 0
}

func bytesEqual[T any](x, y *T) bool {
	n := int(unsafe.Sizeof(*x))
	return bytes.Equal(
		unsafe.Slice((*byte)(unsafe.Pointer(x)), n),
		unsafe.Slice((*byte)(unsafe.Pointer(y)), n),
	)
}

func valueEqual[T any](x, y *T) bool {
	return any(*x) == any(*y)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Interface, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
