package metadata

import (
	"encoding/binary"

	"github.com/dolthub/swiss"
	objalloc "github.com/fixedsize/objalloc"
	"github.com/pkg/errors"
)

// BlockInfo is the externally-owned metadata attached to an allocated block by the
// external header strategy.
type BlockInfo struct {
	// Label is the client-supplied label for the allocation, or "" when none was
	// supplied
	Label string
	// AllocNum is the cumulative allocation count at the time this block was handed
	// out
	AllocNum uint32
	// InUse is true for the structure's whole lifetime; it exists so dumps of the
	// registry read the same as inline headers
	InUse bool
}

// ExternalHeader is the pointer-width strategy. The block's header slot stores a
// non-zero handle into a registry that owns the BlockInfo; a zero slot means no
// structure is attached, so a scan of a not-yet-reused block is never mistaken for a
// live header.
//
// The registry owns every BlockInfo from the moment its block is allocated until the
// block is freed or the allocator is destroyed, which makes leaked header structures
// directly observable through LiveCount.
type ExternalHeader struct {
	nextHandle uint64
	registry   *swiss.Map[uint64, *BlockInfo]
}

var _ BlockHeader = &ExternalHeader{}

func NewExternalHeader() *ExternalHeader {
	return &ExternalHeader{
		registry: swiss.NewMap[uint64, *BlockInfo](8),
	}
}

func (h *ExternalHeader) Kind() objalloc.HeaderKind { return objalloc.HeaderExternal }
func (h *ExternalHeader) Size() int                 { return objalloc.ExternalHeaderSize }

// The slot is pointer-width, so the handle is stored at the platform's word size.
func readHandle(slot []byte) uint64 {
	if len(slot) == 4 {
		return uint64(binary.LittleEndian.Uint32(slot))
	}
	return binary.LittleEndian.Uint64(slot)
}

func writeHandle(slot []byte, handle uint64) {
	if len(slot) == 4 {
		binary.LittleEndian.PutUint32(slot, uint32(handle))
		return
	}
	binary.LittleEndian.PutUint64(slot, handle)
}

func (h *ExternalHeader) OnAllocate(header []byte, allocNum uint32, label string) error {
	if len(header) != objalloc.ExternalHeaderSize {
		return errors.Errorf("external header slot is %d bytes, expected %d", len(header), objalloc.ExternalHeaderSize)
	}

	h.nextHandle++
	handle := h.nextHandle
	h.registry.Put(handle, &BlockInfo{
		Label:    label,
		AllocNum: allocNum,
		InUse:    true,
	})

	// Writing the slot is the last step: a failure above leaves the block's header
	// region untouched.
	writeHandle(header, handle)
	return nil
}

func (h *ExternalHeader) OnFree(header []byte) error {
	if len(header) != objalloc.ExternalHeaderSize {
		return errors.Errorf("external header slot is %d bytes, expected %d", len(header), objalloc.ExternalHeaderSize)
	}

	handle := readHandle(header)
	if handle == 0 {
		// No structure attached. Upstream revisions disagreed on whether to guard
		// this case; releasing nothing is the safe reading.
		return nil
	}

	h.registry.Delete(handle)
	writeHandle(header, 0)
	return nil
}

func (h *ExternalHeader) InUse(header []byte) bool {
	handle := readHandle(header)
	if handle == 0 {
		return false
	}

	info, ok := h.registry.Get(handle)
	return ok && info.InUse
}

// Lookup retrieves the BlockInfo attached to a block's header slot, if any.
func (h *ExternalHeader) Lookup(header []byte) (*BlockInfo, bool) {
	handle := readHandle(header)
	if handle == 0 {
		return nil, false
	}

	return h.registry.Get(handle)
}

// LiveCount returns the number of BlockInfo structures currently owned by the
// registry. It equals the number of allocated blocks whose headers have not been
// cleared.
func (h *ExternalHeader) LiveCount() int {
	return h.registry.Count()
}
