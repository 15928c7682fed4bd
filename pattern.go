package objalloc

import "unsafe"

const (
	// UnallocatedPattern is the byte written across a block's object data when the block
	// is first carved out of a page and has never been handed to a client
	UnallocatedPattern byte = 0xAA
	// AllocatedPattern is the byte written across a block's object data when the block
	// is handed to a client
	AllocatedPattern byte = 0xBB
	// FreedPattern is the byte written across a block's object data when the client
	// returns the block
	FreedPattern byte = 0xCC
	// PadPattern is the byte written across the pad regions flanking a block's object
	// data; a pad byte that no longer holds this value indicates an out-of-bounds write
	PadPattern byte = 0xDD
)

// PtrSize is the width in bytes of the intrusive link slots embedded in pages and
// free blocks
const PtrSize = int(unsafe.Sizeof(uintptr(0)))

// StampPattern fills data with the provided marker byte. The patterns are purely a
// debugging aid and are only written when the allocator's debug mode is on.
func StampPattern(data []byte, pattern byte) {
	for i := range data {
		data[i] = pattern
	}
}

// WritePadMarkers fills a pad region with PadPattern.
func WritePadMarkers(data []byte) {
	StampPattern(data, PadPattern)
}

// ValidatePadMarkers verifies that the marker written by WritePadMarkers is still
// present across the entire pad region. It returns true if the region is intact and
// false otherwise.
func ValidatePadMarkers(data []byte) bool {
	for i := range data {
		if data[i] != PadPattern {
			return false
		}
	}

	return true
}
