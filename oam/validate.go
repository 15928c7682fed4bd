package oam

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	objalloc "github.com/fixedsize/objalloc"
)

// checkBoundary verifies that object is displaced from its owning page's first block
// by an exact multiple of the full block size. Addresses that fall inside header or
// pad regions, or in no known page at all, fail the check.
func (a *Allocator) checkBoundary(object unsafe.Pointer) error {
	page := a.findOwningPage(object)
	if page == nil {
		return cerrors.Wrapf(objalloc.BadBoundaryError, "free %p: address does not belong to any page", object)
	}

	first := uintptr(page) + uintptr(a.layout.FirstDataOffset())
	addr := uintptr(object)
	if addr < first || (addr-first)%uintptr(a.layout.FullBlockSize) != 0 {
		return cerrors.Wrapf(objalloc.BadBoundaryError, "free %p", object)
	}

	return nil
}

// paddingIntact reports whether both pad regions flanking the block's object data
// still hold the pad marker.
func (a *Allocator) paddingIntact(block unsafe.Pointer) bool {
	left := unsafe.Slice((*byte)(unsafe.Add(block, -a.layout.PadBytes)), a.layout.PadBytes)
	right := unsafe.Slice((*byte)(unsafe.Add(block, a.layout.ObjectSize)), a.layout.PadBytes)

	return objalloc.ValidatePadMarkers(left) && objalloc.ValidatePadMarkers(right)
}

// DumpMemoryInUse walks every block of every page and calls fn with the address and
// object size of each block not currently on the free list. It returns the number of
// blocks visited, which equals the objects-in-use statistic. In host pass-through
// mode there are no pages to walk; fn is never invoked and the objects-in-use
// statistic is returned directly. fn may be nil to only count.
func (a *Allocator) DumpMemoryInUse(fn func(block unsafe.Pointer, size int)) int {
	if a.config.UseHostAllocator {
		return a.stats.ObjectsInUse
	}

	var count int

	for page := a.pageList; page != nil; page = nextOf(page) {
		for i := 0; i < a.config.ObjectsPerPage; i++ {
			block := unsafe.Add(page, a.layout.DataOffset(i))
			if a.isOnFreeList(block) {
				continue
			}

			if fn != nil {
				fn(block, a.layout.ObjectSize)
			}
			count++
		}
	}

	return count
}

// ValidatePages walks every block of every page, free or allocated, and calls fn
// with the address and object size of each block whose padding has been overwritten.
// It returns the number of corrupted blocks found. Unlike the checks on Free this is
// a reporting pass; it never fails.
func (a *Allocator) ValidatePages(fn func(block unsafe.Pointer, size int)) int {
	if a.config.PadBytes == 0 {
		return 0
	}

	var corruptions int
	for page := a.pageList; page != nil; page = nextOf(page) {
		for i := 0; i < a.config.ObjectsPerPage; i++ {
			block := unsafe.Add(page, a.layout.DataOffset(i))
			if a.paddingIntact(block) {
				continue
			}

			if fn != nil {
				fn(block, a.layout.ObjectSize)
			}
			corruptions++
		}
	}

	return corruptions
}
