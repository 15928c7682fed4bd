package objalloc

import (
	cerrors "github.com/cockroachdb/errors"
)

// HeaderKind selects the per-block header metadata strategy.
type HeaderKind uint32

const (
	// HeaderNone attaches no metadata to blocks
	HeaderNone HeaderKind = iota
	// HeaderBasic attaches 5 bytes: a 4-byte allocation sequence number and a 1-byte
	// in-use flag
	HeaderBasic
	// HeaderExtended attaches the basic fields plus a 2-byte reuse counter that
	// increments every time the block transitions free to allocated
	HeaderExtended
	// HeaderExternal attaches a pointer-width slot referencing a separately-owned
	// metadata structure that can carry a client label
	HeaderExternal
)

var headerKindMapping = map[HeaderKind]string{
	HeaderNone:     "HeaderNone",
	HeaderBasic:    "HeaderBasic",
	HeaderExtended: "HeaderExtended",
	HeaderExternal: "HeaderExternal",
}

func (k HeaderKind) String() string {
	return headerKindMapping[k]
}

const (
	// BasicHeaderSize is the fixed byte size of the basic header layout
	BasicHeaderSize = 5
	// ExtendedHeaderSize is the fixed byte size of the extended header layout
	ExtendedHeaderSize = 7
	// ExternalHeaderSize is the byte size of the external header slot
	ExternalHeaderSize = PtrSize
)

// HeaderBlockInfo pairs a header kind with its byte size. The size is fully determined
// by the kind; Config.Validate rejects mismatches.
type HeaderBlockInfo struct {
	Kind HeaderKind
	Size int
}

// HeaderInfo builds the HeaderBlockInfo for a kind with its derived byte size.
func HeaderInfo(kind HeaderKind) HeaderBlockInfo {
	var size int
	switch kind {
	case HeaderBasic:
		size = BasicHeaderSize
	case HeaderExtended:
		size = ExtendedHeaderSize
	case HeaderExternal:
		size = ExternalHeaderSize
	}

	return HeaderBlockInfo{Kind: kind, Size: size}
}

func (i HeaderBlockInfo) Validate() error {
	expected, ok := map[HeaderKind]int{
		HeaderNone:     0,
		HeaderBasic:    BasicHeaderSize,
		HeaderExtended: ExtendedHeaderSize,
		HeaderExternal: ExternalHeaderSize,
	}[i.Kind]
	if !ok {
		return cerrors.Newf("unknown header kind: %d", i.Kind)
	}
	if i.Size != expected {
		return cerrors.Newf("header kind %s requires a size of %d bytes, but the configured size is %d", i.Kind, expected, i.Size)
	}

	return nil
}

// Config is the immutable per-allocator configuration. The single permitted mutation
// after construction is the debug toggle exposed through the allocator's
// SetDebugState.
type Config struct {
	// ObjectsPerPage is the number of fixed-size blocks carved out of each page
	ObjectsPerPage int
	// MaxPages caps the number of pages the allocator may own. 0 means unbounded.
	MaxPages int
	// PadBytes is the number of guard bytes placed on each side of a block's object
	// data
	PadBytes int
	// HeaderBlock selects the per-block header metadata strategy
	HeaderBlock HeaderBlockInfo
	// DebugOn enables pattern stamping and the double-free, boundary, and corruption
	// checks on Free
	DebugOn bool
	// UseHostAllocator bypasses the page and free-list machinery entirely and forwards
	// each request to the host heap, retaining only statistics tracking
	UseHostAllocator bool
}

func (c Config) Validate() error {
	if c.ObjectsPerPage < 1 {
		return cerrors.Newf("ObjectsPerPage is %d, but each page must hold at least one object", c.ObjectsPerPage)
	}
	if c.MaxPages < 0 {
		return cerrors.Newf("MaxPages is %d, but it must be 0 (unbounded) or positive", c.MaxPages)
	}
	if c.PadBytes < 0 {
		return cerrors.Newf("PadBytes is %d, but it cannot be negative", c.PadBytes)
	}

	return c.HeaderBlock.Validate()
}
