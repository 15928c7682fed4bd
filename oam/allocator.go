package oam

import (
	"context"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	objalloc "github.com/fixedsize/objalloc"
	"github.com/fixedsize/objalloc/metadata"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Allocator manages pools of equally-sized objects carved out of large contiguous
// pages. Construction computes the block geometry and eagerly allocates one page;
// Allocate pops the free-list head, growing by a page on exhaustion up to the
// configured cap; Free runs the debug checks and pushes the block back.
//
// An Allocator is single-threaded by contract. Calling it from multiple goroutines
// without external synchronization is a precondition violation, not a handled case.
type Allocator struct {
	logger *slog.Logger
	memory MemorySource
	config objalloc.Config
	layout objalloc.BlockLayout
	header metadata.BlockHeader
	stats  objalloc.Statistics

	pageList unsafe.Pointer
	freeList unsafe.Pointer
	// pages retains every page buffer so the addresses threaded through the intrusive
	// lists stay live
	pages [][]byte
	// hostAllocs retains pass-through allocations, keyed by the address handed to the
	// client
	hostAllocs map[unsafe.Pointer][]byte
}

// CreateOptions are optional behaviors for a new Allocator.
type CreateOptions struct {
	// Memory overrides the source that pages and pass-through allocations are
	// requested from. When nil, the Go heap is used.
	Memory MemorySource
}

// New creates an Allocator for objects of objectSize bytes. One page is allocated
// immediately unless the configuration enables host pass-through mode.
func New(logger *slog.Logger, objectSize int, config objalloc.Config, options CreateOptions) (*Allocator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if objectSize < 1 {
		return nil, cerrors.Newf("object size is %d, but it must be at least one byte", objectSize)
	}
	if !config.UseHostAllocator && objectSize < objalloc.PtrSize {
		// The free list threads its links through the leading object bytes
		return nil, cerrors.Newf("object size is %d, but pooled objects must be at least %d bytes to hold a free-list link", objectSize, objalloc.PtrSize)
	}

	header, err := metadata.NewBlockHeader(config.HeaderBlock)
	if err != nil {
		return nil, err
	}

	memory := options.Memory
	if memory == nil {
		memory = HostMemorySource{}
	}

	a := &Allocator{
		logger: logger,
		memory: memory,
		config: config,
		layout: objalloc.ComputeLayout(objectSize, config),
		header: header,
	}
	a.stats.ObjectSize = objectSize
	a.stats.PageSize = a.layout.PageSize

	if config.UseHostAllocator {
		a.hostAllocs = make(map[unsafe.Pointer][]byte)
		return a, nil
	}

	if err := a.allocatePage(); err != nil {
		return nil, err
	}

	return a, nil
}

// Allocate hands out one object and returns the address of its data bytes (not the
// block start). label is attached to the block's metadata when the external header
// strategy is configured and is ignored otherwise.
//
// Fails with objalloc.NoPagesError when the page cap is reached and with
// objalloc.OutOfMemoryError when the memory source cannot supply a new page.
func (a *Allocator) Allocate(label string) (unsafe.Pointer, error) {
	if a.config.UseHostAllocator {
		return a.allocateFromHost()
	}

	if a.stats.FreeObjects <= 0 {
		if a.config.MaxPages != 0 && a.stats.PagesInUse >= a.config.MaxPages {
			return nil, cerrors.Wrapf(objalloc.NoPagesError, "allocate: all %d page(s) are in use", a.stats.PagesInUse)
		}

		if err := a.allocatePage(); err != nil {
			return nil, err
		}
	}

	block := a.freeList

	// Stamp the header before any state changes so a header failure leaves the
	// allocator untouched
	err := a.header.OnAllocate(a.headerRegion(block), uint32(a.stats.Allocations+1), label)
	if err != nil {
		return nil, err
	}

	a.freeList = nextOf(block)
	a.stats.FreeObjects--
	a.stats.AddAllocation()

	if a.config.DebugOn {
		objalloc.StampPattern(a.objectRegion(block), objalloc.AllocatedPattern)
	}

	return block, nil
}

// Free returns an object to the free list. When debug mode is on, the double-free,
// boundary, and corruption checks run in that order and each short-circuits before
// any mutation; when debug mode is off, freeing an address that was never allocated
// is undefined behavior, which is the documented release-mode performance tradeoff.
func (a *Allocator) Free(object unsafe.Pointer) error {
	if a.config.UseHostAllocator {
		return a.freeToHost(object)
	}

	if a.config.DebugOn {
		if a.isOnFreeList(object) {
			return cerrors.Wrapf(objalloc.MultipleFreeError, "free %p", object)
		}
		if err := a.checkBoundary(object); err != nil {
			return err
		}
		if a.config.PadBytes > 0 && !a.paddingIntact(object) {
			return cerrors.Wrapf(objalloc.CorruptedBlockError, "free %p", object)
		}
	}

	if err := a.header.OnFree(a.headerRegion(object)); err != nil {
		return err
	}

	if a.config.DebugOn {
		objalloc.StampPattern(a.objectRegion(object), objalloc.FreedPattern)
	}

	a.pushFreeBlock(object)
	a.stats.FreeObjects++
	a.stats.AddDeallocation()
	return nil
}

func (a *Allocator) allocateFromHost() (unsafe.Pointer, error) {
	buf, err := a.memory.AllocateBuffer(a.layout.ObjectSize)
	if err != nil {
		return nil, cerrors.Wrapf(objalloc.OutOfMemoryError, "allocate from host: %v", err)
	}

	object := unsafe.Pointer(&buf[0])
	a.hostAllocs[object] = buf
	a.stats.AddAllocation()
	return object, nil
}

func (a *Allocator) freeToHost(object unsafe.Pointer) error {
	delete(a.hostAllocs, object)
	a.stats.AddDeallocation()
	return nil
}

// FreeEmptyPages would return fully-free pages to the memory source. Page
// reclamation is not implemented; the call always reports zero reclaimed pages.
func (a *Allocator) FreeEmptyPages() int {
	return 0
}

// SetDebugState toggles debug mode. This is the only configuration field that may
// change after construction; the block geometry never does.
func (a *Allocator) SetDebugState(on bool) {
	a.config.DebugOn = on
}

// FreeList returns the head of the free list, or nil when no blocks are free. In
// host pass-through mode it is nil for the allocator's whole lifetime.
func (a *Allocator) FreeList() unsafe.Pointer {
	return a.freeList
}

// PageList returns the head of the page list (the most recently allocated page), or
// nil in host pass-through mode.
func (a *Allocator) PageList() unsafe.Pointer {
	return a.pageList
}

// Config returns a snapshot of the allocator's configuration.
func (a *Allocator) Config() objalloc.Config {
	return a.config
}

// Layout returns the block geometry derived at construction.
func (a *Allocator) Layout() objalloc.BlockLayout {
	return a.layout
}

// Stats returns a snapshot of the allocator's statistics.
func (a *Allocator) Stats() objalloc.Statistics {
	return a.stats
}

// HeaderBlock returns the header strategy selected at construction. Introspection
// only; mutating headers outside Allocate and Free corrupts the allocator.
func (a *Allocator) HeaderBlock() metadata.BlockHeader {
	return a.header
}

// Validate performs internal consistency checks. When the allocator is functioning
// correctly it cannot return an error, but it assists in diagnosing issues.
func (a *Allocator) Validate() error {
	if a.stats.ObjectsInUse != a.stats.Allocations-a.stats.Deallocations {
		return errors.Errorf("%d objects in use, but %d allocations minus %d deallocations should leave %d",
			a.stats.ObjectsInUse, a.stats.Allocations, a.stats.Deallocations, a.stats.Allocations-a.stats.Deallocations)
	}

	if a.config.UseHostAllocator {
		if a.pageList != nil || a.freeList != nil {
			return errors.New("host pass-through mode must never build page or free lists")
		}
		if len(a.hostAllocs) != a.stats.ObjectsInUse {
			return errors.Errorf("%d live host allocations are retained, but %d objects are in use", len(a.hostAllocs), a.stats.ObjectsInUse)
		}
		return nil
	}

	var freeCount int
	for node := a.freeList; node != nil; node = nextOf(node) {
		freeCount++
	}
	if freeCount != a.stats.FreeObjects {
		return errors.Errorf("counted %d blocks on the free list, but statistics indicate %d", freeCount, a.stats.FreeObjects)
	}

	var pageCount int
	for page := a.pageList; page != nil; page = nextOf(page) {
		pageCount++
	}
	if pageCount != a.stats.PagesInUse {
		return errors.Errorf("counted %d pages on the page list, but statistics indicate %d", pageCount, a.stats.PagesInUse)
	}
	if pageCount != len(a.pages) {
		return errors.Errorf("counted %d pages on the page list, but %d page buffers are retained", pageCount, len(a.pages))
	}

	if a.stats.FreeObjects+a.stats.ObjectsInUse != a.stats.PagesInUse*a.config.ObjectsPerPage {
		return errors.Errorf("%d free plus %d in use does not account for every block of %d page(s)",
			a.stats.FreeObjects, a.stats.ObjectsInUse, a.stats.PagesInUse)
	}

	return nil
}

// Destroy releases everything the allocator owns. Any block still allocated is
// logged as unreleased memory and has its header metadata released; if any such
// block existed, Destroy returns an error after cleaning up.
func (a *Allocator) Destroy() error {
	if a.config.UseHostAllocator {
		unreleased := len(a.hostAllocs)
		if unreleased > 0 {
			a.logger.LogAttrs(context.Background(), slog.LevelError,
				"[UNRELEASED MEMORY] host pass-through allocations were not freed",
				slog.Int("Count", unreleased))
		}
		a.hostAllocs = nil
		a.stats.ObjectsInUse = 0

		if unreleased > 0 {
			return errors.New("some allocations were not freed before the destruction of this allocator")
		}
		return nil
	}

	unreleased := a.DumpMemoryInUse(func(block unsafe.Pointer, size int) {
		a.logUnreleasedMemory(block, size)
		_ = a.header.OnFree(a.headerRegion(block))
	})

	a.pageList = nil
	a.freeList = nil
	a.pages = nil
	a.stats.FreeObjects = 0
	a.stats.PagesInUse = 0
	a.stats.ObjectsInUse = 0

	if unreleased > 0 {
		return errors.New("some allocations were not freed before the destruction of this allocator")
	}
	return nil
}

func (a *Allocator) logUnreleasedMemory(block unsafe.Pointer, size int) {
	name := "empty"
	if external, ok := a.header.(*metadata.ExternalHeader); ok {
		if info, found := external.Lookup(a.headerRegion(block)); found && info.Label != "" {
			name = info.Label
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Uint64("Address", uint64(uintptr(block))),
		slog.Int("Size", size),
		slog.String("Name", name),
	)
}
