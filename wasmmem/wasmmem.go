// Package wasmmem backs rowarena containers with WebAssembly linear memory.
//
// The allocator instantiates a module that only exports a memory and bumps a
// pointer through it. The runtime reserves the memory's maximum size up front,
// so blocks keep their address when the memory grows. Freeing or growing the
// most recent block happens in place; any other Free is a no-op until Reset.
package wasmmem

import (
	"context"
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/rowarena"
	"github.com/wippyai/rowarena/errors"
	"github.com/wippyai/rowarena/internal/diag"
)

// PageSize is the size of a WebAssembly memory page.
const PageSize = 65536

const align = 8

// Config sizes the linear memory.
type Config struct {
	// InitialPages is the memory size at instantiation. 0 means 1.
	InitialPages uint32
	// MaxPages bounds growth. 0 means 256 (16MB).
	MaxPages uint32
}

// Allocator is a bump allocator over one linear memory.
type Allocator struct {
	rt      wazero.Runtime
	mem     api.Memory
	log     *zap.Logger
	mu      sync.Mutex
	top     uint32
	last    uint32 // offset of the most recent block
	lastLen int    // -1 when the most recent block was freed
}

// New instantiates the memory module. Only the logger option is used.
func New(ctx context.Context, cfg Config, opts ...rowarena.Option) (*Allocator, error) {
	rc := rowarena.Apply(opts...)
	if cfg.InitialPages == 0 {
		cfg.InitialPages = 1
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 256
	}
	if cfg.InitialPages > cfg.MaxPages || cfg.MaxPages > 65536 {
		return nil, diag.Report(rc.Logger, errors.New(errors.PhaseWasmMem, errors.KindInvalidInput).
			Detail("invalid page bounds %d..%d", cfg.InitialPages, cfg.MaxPages).
			Build())
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MaxPages).
		WithMemoryCapacityFromMax(true))

	mod, err := rt.Instantiate(ctx, memoryModule(cfg.InitialPages, cfg.MaxPages))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, diag.Report(rc.Logger, errors.New(errors.PhaseWasmMem, errors.KindAllocation).
			Cause(err).
			Detail("instantiate memory module").
			Build())
	}
	return &Allocator{rt: rt, mem: mod.Memory(), log: rc.Logger, lastLen: -1}, nil
}

// memoryModule encodes a module whose only content is an exported memory.
func memoryModule(initial, maxPages uint32) []byte {
	var limits []byte
	limits = append(limits, 0x01) // has max
	limits = binary.AppendUvarint(limits, uint64(initial))
	limits = binary.AppendUvarint(limits, uint64(maxPages))

	memSec := append([]byte{0x01}, limits...)
	expSec := append([]byte{0x01, 6}, "memory"...)
	expSec = append(expSec, 0x02, 0x00)

	bin := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	bin = append(bin, 0x05)
	bin = binary.AppendUvarint(bin, uint64(len(memSec)))
	bin = append(bin, memSec...)
	bin = append(bin, 0x07)
	bin = binary.AppendUvarint(bin, uint64(len(expSec)))
	return append(bin, expSec...)
}

// ensure grows the memory so that end bytes are addressable.
func (a *Allocator) ensure(end uint64) error {
	size := uint64(a.mem.Size())
	if end <= size {
		return nil
	}
	pages := uint32((end - size + PageSize - 1) / PageSize)
	prev, ok := a.mem.Grow(pages)
	if !ok {
		return errors.New(errors.PhaseWasmMem, errors.KindAllocation).
			Value(end).
			Detail("linear memory cannot grow by %d pages", pages).
			Build()
	}
	a.log.Debug("linear memory grown",
		zap.String("component", string(errors.PhaseWasmMem)),
		zap.Uint32("from_pages", prev),
		zap.Uint32("to_pages", prev+pages))
	return nil
}

func (a *Allocator) view(off uint32, size int) []byte {
	b, _ := a.mem.Read(off, uint32(size))
	return b[:size:size]
}

func (a *Allocator) offset(block []byte) (uint32, bool) {
	if len(block) == 0 {
		return 0, false
	}
	base, ok := a.mem.Read(0, 1)
	if !ok {
		return 0, false
	}
	d := uintptr(unsafe.Pointer(unsafe.SliceData(block))) - uintptr(unsafe.Pointer(unsafe.SliceData(base)))
	if d >= uintptr(a.mem.Size()) {
		return 0, false
	}
	return uint32(d), true
}

func (a *Allocator) alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.InvalidInput(errors.PhaseWasmMem, "negative allocation size")
	}
	off := (a.top + align - 1) &^ (align - 1)
	end := uint64(off) + uint64(size)
	if err := a.ensure(end); err != nil {
		return nil, err
	}
	b := a.view(off, size)
	clear(b)
	a.top = uint32(end)
	a.last, a.lastLen = off, size
	return b, nil
}

// Alloc returns size zeroed bytes at an 8-byte aligned offset.
func (a *Allocator) Alloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alloc(size)
}

// Realloc grows or shrinks the most recent block in place; other blocks are copied.
func (a *Allocator) Realloc(block []byte, size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size < 0 {
		return nil, errors.InvalidInput(errors.PhaseWasmMem, "negative allocation size")
	}
	if off, ok := a.offset(block); ok && off == a.last && len(block) == a.lastLen {
		end := uint64(off) + uint64(size)
		if err := a.ensure(end); err != nil {
			return nil, err
		}
		b := a.view(off, size)
		if size > len(block) {
			clear(b[len(block):])
		}
		a.top = uint32(end)
		a.lastLen = size
		return b, nil
	}

	b, err := a.alloc(size)
	if err != nil {
		return nil, err
	}
	copy(b, block)
	return b, nil
}

// Free rewinds the allocator when block is the most recent allocation.
func (a *Allocator) Free(block []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if off, ok := a.offset(block); ok && off == a.last && len(block) == a.lastLen {
		a.top = off
		a.lastLen = -1
	}
}

// Reset releases every block at once. Blocks handed out earlier must not be used afterwards.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.top = 0
	a.lastLen = -1
}

// Used returns the bump pointer offset.
func (a *Allocator) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.top)
}

// Pages returns the current memory size in pages.
func (a *Allocator) Pages() uint32 {
	return a.mem.Size() / PageSize
}

// Close tears down the runtime and its memory.
func (a *Allocator) Close(ctx context.Context) error {
	return a.rt.Close(ctx)
}

var _ rowarena.Allocator = (*Allocator)(nil)
