package objalloc

// BlockLayout is the derived byte geometry for one allocator configuration. It is
// computed once at construction and never changes afterward.
//
// Each page is laid out as a pointer-width next-page link followed by ObjectsPerPage
// blocks of FullBlockSize bytes. Each block holds, left to right: the header bytes,
// the left pad bytes, the object data, and the right pad bytes.
type BlockLayout struct {
	ObjectSize     int
	HeaderSize     int
	PadBytes       int
	ObjectsPerPage int

	// FullBlockSize is ObjectSize + 2*PadBytes + HeaderSize
	FullBlockSize int
	// PageSize is FullBlockSize*ObjectsPerPage + PtrSize
	PageSize int
}

// ComputeLayout derives the block and page geometry for an object size and
// configuration. It assumes the configuration has already been validated.
func ComputeLayout(objectSize int, config Config) BlockLayout {
	fullBlockSize := objectSize + 2*config.PadBytes + config.HeaderBlock.Size

	return BlockLayout{
		ObjectSize:     objectSize,
		HeaderSize:     config.HeaderBlock.Size,
		PadBytes:       config.PadBytes,
		ObjectsPerPage: config.ObjectsPerPage,
		FullBlockSize:  fullBlockSize,
		PageSize:       fullBlockSize*config.ObjectsPerPage + PtrSize,
	}
}

// HeaderOffset returns the offset from the page start of block index's header bytes.
func (l BlockLayout) HeaderOffset(index int) int {
	return PtrSize + index*l.FullBlockSize
}

// LeftPadOffset returns the offset from the page start of block index's leading pad
// region.
func (l BlockLayout) LeftPadOffset(index int) int {
	return l.HeaderOffset(index) + l.HeaderSize
}

// DataOffset returns the offset from the page start of block index's object data.
func (l BlockLayout) DataOffset(index int) int {
	return l.LeftPadOffset(index) + l.PadBytes
}

// RightPadOffset returns the offset from the page start of block index's trailing pad
// region.
func (l BlockLayout) RightPadOffset(index int) int {
	return l.DataOffset(index) + l.ObjectSize
}

// FirstDataOffset returns the offset from the page start of the first block's object
// data. Every valid object address within a page is displaced from this offset by a
// multiple of FullBlockSize.
func (l BlockLayout) FirstDataOffset() int {
	return l.DataOffset(0)
}
