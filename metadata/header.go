package metadata

import (
	"encoding/binary"

	objalloc "github.com/fixedsize/objalloc"
	"github.com/pkg/errors"
)

// Field placement within the header region, relative to the end of the region: the
// in-use flag occupies the final byte, the 4-byte allocation number sits immediately
// before it, and the extended layout's 2-byte reuse counter sits before that. All
// multi-byte fields are little-endian.
const (
	basicAllocNumOffset = 0
	basicFlagOffset     = 4

	extendedReuseOffset    = 0
	extendedAllocNumOffset = 2
	extendedFlagOffset     = 6

	inUseBit byte = 0x01
)

// BlockHeader writes and clears the per-block header metadata for one allocator. The
// strategy is selected once, at configuration time, via NewBlockHeader.
//
// The header parameter of each method is the block's header region within its owning
// page; it is always exactly Size() bytes (nil when Size() is 0).
type BlockHeader interface {
	Kind() objalloc.HeaderKind
	Size() int

	// OnAllocate stamps the header for a block transitioning free to allocated.
	// allocNum is the allocator's cumulative allocation count including this
	// allocation. label is only meaningful to the external strategy and may be empty.
	//
	// On failure the header region must be left untouched, so a failed allocation
	// never leaves a partially-initialized header reachable from the block.
	OnAllocate(header []byte, allocNum uint32, label string) error
	// OnFree clears the header for a block transitioning allocated to free. Clearing
	// a header that was never stamped is a no-op, not an error.
	OnFree(header []byte) error
	// InUse reports whether the header marks its block as allocated. Always false for
	// the none strategy, which records nothing.
	InUse(header []byte) bool
}

// NewBlockHeader selects the header strategy for a configuration. The returned value
// is what the allocator dispatches through for every allocate and free.
func NewBlockHeader(info objalloc.HeaderBlockInfo) (BlockHeader, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	switch info.Kind {
	case objalloc.HeaderNone:
		return NoneHeader{}, nil
	case objalloc.HeaderBasic:
		return BasicHeader{}, nil
	case objalloc.HeaderExtended:
		return ExtendedHeader{}, nil
	case objalloc.HeaderExternal:
		return NewExternalHeader(), nil
	}

	return nil, errors.Errorf("unknown header kind: %d", info.Kind)
}

// NoneHeader is the zero-byte strategy: every operation is a no-op.
type NoneHeader struct{}

var _ BlockHeader = NoneHeader{}

func (NoneHeader) Kind() objalloc.HeaderKind { return objalloc.HeaderNone }
func (NoneHeader) Size() int                 { return 0 }

func (NoneHeader) OnAllocate(header []byte, allocNum uint32, label string) error { return nil }
func (NoneHeader) OnFree(header []byte) error                                    { return nil }
func (NoneHeader) InUse(header []byte) bool                                      { return false }

// BasicHeader is the 5-byte inline strategy: a 4-byte allocation number that is 0
// while the block is free, and a flag byte whose low bit marks the block in use.
type BasicHeader struct{}

var _ BlockHeader = BasicHeader{}

func (BasicHeader) Kind() objalloc.HeaderKind { return objalloc.HeaderBasic }
func (BasicHeader) Size() int                 { return objalloc.BasicHeaderSize }

func (h BasicHeader) OnAllocate(header []byte, allocNum uint32, label string) error {
	if len(header) != objalloc.BasicHeaderSize {
		return errors.Errorf("basic header region is %d bytes, expected %d", len(header), objalloc.BasicHeaderSize)
	}

	binary.LittleEndian.PutUint32(header[basicAllocNumOffset:], allocNum)
	header[basicFlagOffset] |= inUseBit
	return nil
}

func (h BasicHeader) OnFree(header []byte) error {
	if len(header) != objalloc.BasicHeaderSize {
		return errors.Errorf("basic header region is %d bytes, expected %d", len(header), objalloc.BasicHeaderSize)
	}

	binary.LittleEndian.PutUint32(header[basicAllocNumOffset:], 0)
	header[basicFlagOffset] &^= inUseBit
	return nil
}

func (h BasicHeader) InUse(header []byte) bool {
	return header[basicFlagOffset]&inUseBit != 0
}

// AllocationNumber reads the allocation number field of a basic header region.
func (h BasicHeader) AllocationNumber(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[basicAllocNumOffset:])
}

// ExtendedHeader is the 7-byte inline strategy: the basic fields preceded by a 2-byte
// reuse counter. The counter increments on every free-to-allocated transition and is
// never reset, so it survives across the block's whole lifetime.
type ExtendedHeader struct{}

var _ BlockHeader = ExtendedHeader{}

func (ExtendedHeader) Kind() objalloc.HeaderKind { return objalloc.HeaderExtended }
func (ExtendedHeader) Size() int                 { return objalloc.ExtendedHeaderSize }

func (h ExtendedHeader) OnAllocate(header []byte, allocNum uint32, label string) error {
	if len(header) != objalloc.ExtendedHeaderSize {
		return errors.Errorf("extended header region is %d bytes, expected %d", len(header), objalloc.ExtendedHeaderSize)
	}

	reuse := binary.LittleEndian.Uint16(header[extendedReuseOffset:])
	binary.LittleEndian.PutUint16(header[extendedReuseOffset:], reuse+1)
	binary.LittleEndian.PutUint32(header[extendedAllocNumOffset:], allocNum)
	header[extendedFlagOffset] |= inUseBit
	return nil
}

func (h ExtendedHeader) OnFree(header []byte) error {
	if len(header) != objalloc.ExtendedHeaderSize {
		return errors.Errorf("extended header region is %d bytes, expected %d", len(header), objalloc.ExtendedHeaderSize)
	}

	binary.LittleEndian.PutUint32(header[extendedAllocNumOffset:], 0)
	header[extendedFlagOffset] &^= inUseBit
	return nil
}

func (h ExtendedHeader) InUse(header []byte) bool {
	return header[extendedFlagOffset]&inUseBit != 0
}

// AllocationNumber reads the allocation number field of an extended header region.
func (h ExtendedHeader) AllocationNumber(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[extendedAllocNumOffset:])
}

// ReuseCount reads the reuse counter of an extended header region.
func (h ExtendedHeader) ReuseCount(header []byte) uint16 {
	return binary.LittleEndian.Uint16(header[extendedReuseOffset:])
}
