package objalloc_test

import (
	"testing"

	objalloc "github.com/fixedsize/objalloc"
	"github.com/stretchr/testify/require"
)

func TestHeaderInfoSizes(t *testing.T) {
	require.Equal(t, 0, objalloc.HeaderInfo(objalloc.HeaderNone).Size)
	require.Equal(t, objalloc.BasicHeaderSize, objalloc.HeaderInfo(objalloc.HeaderBasic).Size)
	require.Equal(t, objalloc.ExtendedHeaderSize, objalloc.HeaderInfo(objalloc.HeaderExtended).Size)
	require.Equal(t, objalloc.PtrSize, objalloc.HeaderInfo(objalloc.HeaderExternal).Size)
}

func TestConfigValidate(t *testing.T) {
	valid := objalloc.Config{
		ObjectsPerPage: 4,
		PadBytes:       2,
		HeaderBlock:    objalloc.HeaderInfo(objalloc.HeaderBasic),
	}
	require.NoError(t, valid.Validate())

	noObjects := valid
	noObjects.ObjectsPerPage = 0
	require.Error(t, noObjects.Validate())

	negativePages := valid
	negativePages.MaxPages = -1
	require.Error(t, negativePages.Validate())

	negativePad := valid
	negativePad.PadBytes = -2
	require.Error(t, negativePad.Validate())

	mismatchedHeader := valid
	mismatchedHeader.HeaderBlock = objalloc.HeaderBlockInfo{Kind: objalloc.HeaderBasic, Size: 4}
	require.Error(t, mismatchedHeader.Validate())

	unknownHeader := valid
	unknownHeader.HeaderBlock = objalloc.HeaderBlockInfo{Kind: objalloc.HeaderKind(42)}
	require.Error(t, unknownHeader.Validate())
}

func TestHeaderKindString(t *testing.T) {
	require.Equal(t, "HeaderNone", objalloc.HeaderNone.String())
	require.Equal(t, "HeaderExternal", objalloc.HeaderExternal.String())
}

func TestPadMarkers(t *testing.T) {
	pad := make([]byte, 8)
	objalloc.WritePadMarkers(pad)
	require.True(t, objalloc.ValidatePadMarkers(pad))

	pad[5] = 0x00
	require.False(t, objalloc.ValidatePadMarkers(pad))
}

func TestStatisticsHighWaterMark(t *testing.T) {
	var stats objalloc.Statistics

	stats.AddAllocation()
	stats.AddAllocation()
	stats.AddDeallocation()
	stats.AddAllocation()

	require.Equal(t, 3, stats.Allocations)
	require.Equal(t, 1, stats.Deallocations)
	require.Equal(t, 2, stats.ObjectsInUse)
	require.Equal(t, 3, stats.MostObjects)

	stats.Clear()
	require.Equal(t, objalloc.Statistics{}, stats)
}
