package rowarena

import (
	"sync"
	"unsafe"

	"github.com/wippyai/rowarena/errors"
)

// Allocator hands out byte blocks backing container storage.
// Blocks returned by Alloc and Realloc are zeroed beyond any preserved prefix.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Realloc(block []byte, size int) ([]byte, error)
	Free(block []byte)
}

// HeapAllocator allocates from the Go heap.
// Blocks are 8-byte aligned so containers may overlay fixed-size records on them.
type HeapAllocator struct{}

func (HeapAllocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "negative allocation size")
	}
	if size == 0 {
		return []byte{}, nil
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size), nil
}

func (h HeapAllocator) Realloc(block []byte, size int) ([]byte, error) {
	nb, err := h.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(nb, block)
	return nb, nil
}

// Free is a no-op; the garbage collector reclaims the block.
func (HeapAllocator) Free([]byte) {}

// LimitAllocator fails once live bytes would exceed Limit.
// It is used to bound container memory and to exercise allocation failure paths.
type LimitAllocator struct {
	inner Allocator
	Limit int
	inUse int
	mu    sync.Mutex
}

// NewLimitAllocator wraps inner (HeapAllocator when nil) with a byte limit.
func NewLimitAllocator(inner Allocator, limit int) *LimitAllocator {
	if inner == nil {
		inner = HeapAllocator{}
	}
	return &LimitAllocator{inner: inner, Limit: limit}
}

func (l *LimitAllocator) Alloc(size int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse+size > l.Limit {
		return nil, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Value(size).
			Detail("allocating %d bytes exceeds limit %d (in use %d)", size, l.Limit, l.inUse).
			Build()
	}
	b, err := l.inner.Alloc(size)
	if err != nil {
		return nil, err
	}
	l.inUse += size
	return b, nil
}

func (l *LimitAllocator) Realloc(block []byte, size int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse-len(block)+size > l.Limit {
		return nil, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Value(size).
			Detail("growing %d to %d bytes exceeds limit %d (in use %d)", len(block), size, l.Limit, l.inUse).
			Build()
	}
	b, err := l.inner.Realloc(block, size)
	if err != nil {
		return nil, err
	}
	l.inUse += size - len(block)
	return b, nil
}

func (l *LimitAllocator) Free(block []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inUse -= len(block)
	l.inner.Free(block)
}

// InUse returns the number of live bytes handed out.
func (l *LimitAllocator) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}

// Compile-time checks
var (
	_ Allocator = HeapAllocator{}
	_ Allocator = (*LimitAllocator)(nil)
)
