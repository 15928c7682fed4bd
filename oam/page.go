package oam

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	objalloc "github.com/fixedsize/objalloc"
	"golang.org/x/exp/slog"
)

// MemorySource supplies the raw buffers that pages (and pass-through allocations) are
// carved from. The default source allocates from the Go heap; tests substitute
// failing or counting sources to exercise exhaustion paths.
type MemorySource interface {
	// AllocateBuffer returns a zeroed buffer of exactly size bytes, or an error if
	// the source cannot satisfy the request
	AllocateBuffer(size int) ([]byte, error)
}

// HostMemorySource is the default MemorySource, backed by the Go heap.
type HostMemorySource struct{}

var _ MemorySource = HostMemorySource{}

func (HostMemorySource) AllocateBuffer(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// The page list and the free list are both intrusive: a page's first pointer-width
// bytes link to the next page, and a free block's first object bytes link to the next
// free block. The link view of a block is only valid while the block is on the free
// list; nothing reads or writes a link through a block that is currently allocated.

func nextOf(node unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(node)
}

func setNextOf(node, next unsafe.Pointer) {
	*(*unsafe.Pointer)(node) = next
}

// pushFreeBlock inserts a block at the free-list head. The caller is responsible for
// not inserting a block that is already present; debug mode checks this before
// calling, release mode does not.
func (a *Allocator) pushFreeBlock(block unsafe.Pointer) {
	setNextOf(block, a.freeList)
	a.freeList = block
}

// allocatePage requests one page from the memory source, initializes every block's
// pad and unallocated markers (debug mode only), links all blocks onto the free list,
// and links the page onto the page list. Within the page the free-list order ends up
// the reverse of physical order, so the last physical block becomes the list head.
func (a *Allocator) allocatePage() error {
	buf, err := a.memory.AllocateBuffer(a.layout.PageSize)
	if err != nil {
		return cerrors.Wrapf(objalloc.OutOfMemoryError, "allocate page: %v", err)
	}
	if len(buf) < a.layout.PageSize {
		return cerrors.Wrapf(objalloc.OutOfMemoryError, "allocate page: the memory source returned %d bytes, expected %d", len(buf), a.layout.PageSize)
	}

	a.pages = append(a.pages, buf)
	base := unsafe.Pointer(&buf[0])

	setNextOf(base, a.pageList)
	a.pageList = base

	for i := 0; i < a.config.ObjectsPerPage; i++ {
		if a.config.DebugOn {
			objalloc.WritePadMarkers(buf[a.layout.LeftPadOffset(i):a.layout.DataOffset(i)])
			objalloc.StampPattern(buf[a.layout.DataOffset(i):a.layout.RightPadOffset(i)], objalloc.UnallocatedPattern)
			objalloc.WritePadMarkers(buf[a.layout.RightPadOffset(i) : a.layout.RightPadOffset(i)+a.layout.PadBytes])
		}

		a.pushFreeBlock(unsafe.Add(base, a.layout.DataOffset(i)))
	}

	a.stats.PagesInUse++
	a.stats.FreeObjects += a.config.ObjectsPerPage

	a.logger.Debug("Allocator::allocatePage",
		slog.Int("PagesInUse", a.stats.PagesInUse),
		slog.Int("PageSize", a.layout.PageSize),
	)
	return nil
}

// findOwningPage walks the page list and returns the page whose interval contains
// addr, or nil when addr belongs to no page. O(pages) per call, which is acceptable
// because it only runs from debug validation.
func (a *Allocator) findOwningPage(addr unsafe.Pointer) unsafe.Pointer {
	target := uintptr(addr)

	for page := a.pageList; page != nil; page = nextOf(page) {
		start := uintptr(page)
		if target >= start && target <= start+uintptr(a.layout.PageSize) {
			return page
		}
	}

	return nil
}

// isOnFreeList walks the free list looking for a block address. O(free objects) per
// call.
func (a *Allocator) isOnFreeList(block unsafe.Pointer) bool {
	for node := a.freeList; node != nil; node = nextOf(node) {
		if node == block {
			return true
		}
	}

	return false
}

// headerRegion returns the header bytes of the block whose object data starts at
// block, or nil when the configuration carries no header.
func (a *Allocator) headerRegion(block unsafe.Pointer) []byte {
	if a.layout.HeaderSize == 0 {
		return nil
	}

	start := unsafe.Add(block, -(a.layout.PadBytes + a.layout.HeaderSize))
	return unsafe.Slice((*byte)(start), a.layout.HeaderSize)
}

// objectRegion returns the object data bytes of the block starting at block.
func (a *Allocator) objectRegion(block unsafe.Pointer) []byte {
	return unsafe.Slice((*byte)(block), a.layout.ObjectSize)
}
