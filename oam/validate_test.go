package oam_test

import (
	"testing"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	objalloc "github.com/fixedsize/objalloc"
	"github.com/fixedsize/objalloc/metadata"
	"github.com/stretchr/testify/require"
)

func TestDebugPatternStamping(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 2, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	// A freshly carved block holds the unallocated pattern beyond its free-list link
	head := allocator.FreeList()
	data := unsafe.Slice((*byte)(head), 16)
	for _, b := range data[objalloc.PtrSize:] {
		require.Equal(t, objalloc.UnallocatedPattern, b)
	}

	object, err := allocator.Allocate("")
	require.NoError(t, err)
	data = unsafe.Slice((*byte)(object), 16)
	for _, b := range data {
		require.Equal(t, objalloc.AllocatedPattern, b)
	}

	require.NoError(t, allocator.Free(object))
	for _, b := range data[objalloc.PtrSize:] {
		require.Equal(t, objalloc.FreedPattern, b)
	}
}

func TestDebugOffSkipsStamping(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 2}
	allocator := newTestAllocator(t, 16, config)

	object, err := allocator.Allocate("")
	require.NoError(t, err)

	// The leading bytes still hold the stale free-list link from the block's time on
	// the free list; only the bytes past the link are guaranteed untouched
	data := unsafe.Slice((*byte)(object), 16)
	for _, b := range data[objalloc.PtrSize:] {
		require.Equal(t, byte(0), b)
	}
}

func TestDoubleFreeDetection(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 4, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	object, err := allocator.Allocate("")
	require.NoError(t, err)
	require.NoError(t, allocator.Free(object))

	afterFirstFree := allocator.Stats()

	err = allocator.Free(object)
	require.Error(t, err)
	require.True(t, cerrors.Is(err, objalloc.MultipleFreeError))
	require.Equal(t, afterFirstFree, allocator.Stats())
	require.NoError(t, allocator.Validate())
}

func TestBadBoundaryOneByteOff(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 4, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	object, err := allocator.Allocate("")
	require.NoError(t, err)

	err = allocator.Free(unsafe.Add(object, 1))
	require.Error(t, err)
	require.True(t, cerrors.Is(err, objalloc.BadBoundaryError))

	// The correctly-aligned address still frees cleanly
	require.NoError(t, allocator.Free(object))
}

func TestBadBoundaryForeignAddress(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 4, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	_, err := allocator.Allocate("")
	require.NoError(t, err)

	foreign := make([]byte, 16)
	err = allocator.Free(unsafe.Pointer(&foreign[0]))
	require.Error(t, err)
	require.True(t, cerrors.Is(err, objalloc.BadBoundaryError))
}

func TestPaddingCorruptionDetection(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 4, PadBytes: 4, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	object, err := allocator.Allocate("")
	require.NoError(t, err)

	// One byte past the end of the object's data lands in the trailing pad region
	*(*byte)(unsafe.Add(object, 16)) = 0x00

	var visited []unsafe.Pointer
	corruptions := allocator.ValidatePages(func(block unsafe.Pointer, size int) {
		require.Equal(t, 16, size)
		visited = append(visited, block)
	})
	require.Equal(t, 1, corruptions)
	require.Equal(t, []unsafe.Pointer{object}, visited)

	before := allocator.Stats()
	err = allocator.Free(object)
	require.Error(t, err)
	require.True(t, cerrors.Is(err, objalloc.CorruptedBlockError))
	require.Equal(t, before, allocator.Stats())

	// Repairing the pad byte makes the block freeable again
	*(*byte)(unsafe.Add(object, 16)) = objalloc.PadPattern
	require.NoError(t, allocator.Free(object))
	require.Zero(t, allocator.ValidatePages(nil))
}

func TestValidatePagesWithoutPadBytes(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 4, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	require.Zero(t, allocator.ValidatePages(func(block unsafe.Pointer, size int) {
		t.Fatal("the visitor must not run when no pad bytes are configured")
	}))
}

func TestSetDebugState(t *testing.T) {
	config := objalloc.Config{ObjectsPerPage: 2, DebugOn: true}
	allocator := newTestAllocator(t, 16, config)

	require.True(t, allocator.Config().DebugOn)
	allocator.SetDebugState(false)
	require.False(t, allocator.Config().DebugOn)

	// With debug off, a freed object is not re-stamped
	object, err := allocator.Allocate("")
	require.NoError(t, err)
	require.NoError(t, allocator.Free(object))

	data := unsafe.Slice((*byte)(object), 16)
	for _, b := range data[objalloc.PtrSize:] {
		require.NotEqual(t, objalloc.FreedPattern, b)
	}
}

func TestInlineHeadersThroughAllocator(t *testing.T) {
	config := objalloc.Config{
		ObjectsPerPage: 4,
		PadBytes:       2,
		HeaderBlock:    objalloc.HeaderInfo(objalloc.HeaderBasic),
		DebugOn:        true,
	}
	allocator := newTestAllocator(t, 16, config)
	basic := metadata.BasicHeader{}

	headerOf := func(object unsafe.Pointer) []byte {
		start := unsafe.Add(object, -(config.PadBytes + objalloc.BasicHeaderSize))
		return unsafe.Slice((*byte)(start), objalloc.BasicHeaderSize)
	}

	first, err := allocator.Allocate("")
	require.NoError(t, err)
	require.True(t, basic.InUse(headerOf(first)))
	require.Equal(t, uint32(1), basic.AllocationNumber(headerOf(first)))

	second, err := allocator.Allocate("")
	require.NoError(t, err)
	require.Equal(t, uint32(2), basic.AllocationNumber(headerOf(second)))

	require.NoError(t, allocator.Free(first))
	require.False(t, basic.InUse(headerOf(first)))
	require.Equal(t, uint32(0), basic.AllocationNumber(headerOf(first)))
}

func TestExtendedReuseThroughAllocator(t *testing.T) {
	config := objalloc.Config{
		ObjectsPerPage: 2,
		HeaderBlock:    objalloc.HeaderInfo(objalloc.HeaderExtended),
	}
	allocator := newTestAllocator(t, 16, config)
	extended := metadata.ExtendedHeader{}

	headerOf := func(object unsafe.Pointer) []byte {
		start := unsafe.Add(object, -objalloc.ExtendedHeaderSize)
		return unsafe.Slice((*byte)(start), objalloc.ExtendedHeaderSize)
	}

	// The LIFO free list hands the same block back on every cycle
	object, err := allocator.Allocate("")
	require.NoError(t, err)
	require.Equal(t, uint16(1), extended.ReuseCount(headerOf(object)))

	for cycle := 2; cycle <= 4; cycle++ {
		require.NoError(t, allocator.Free(object))

		again, err := allocator.Allocate("")
		require.NoError(t, err)
		require.Equal(t, object, again)
		require.Equal(t, uint16(cycle), extended.ReuseCount(headerOf(object)))
	}
}
