package oam

import (
	"strconv"
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BuildStatsString writes a JSON document describing the allocator's statistics and
// a per-page map of block states. Diagnostic use only; walking every block is slow.
func (a *Allocator) BuildStatsString(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	statsObj := obj.Name("Stats").Object()
	statsObj.Name("ObjectSize").Int(a.stats.ObjectSize)
	statsObj.Name("PageSize").Int(a.stats.PageSize)
	statsObj.Name("FreeObjects").Int(a.stats.FreeObjects)
	statsObj.Name("ObjectsInUse").Int(a.stats.ObjectsInUse)
	statsObj.Name("PagesInUse").Int(a.stats.PagesInUse)
	statsObj.Name("MostObjects").Int(a.stats.MostObjects)
	statsObj.Name("Allocations").Int(a.stats.Allocations)
	statsObj.Name("Deallocations").Int(a.stats.Deallocations)
	statsObj.End()

	pagesObj := obj.Name("Pages").Object()
	var pageIndex int
	for page := a.pageList; page != nil; page = nextOf(page) {
		pageObj := pagesObj.Name(strconv.Itoa(pageIndex)).Object()
		pageObj.Name("TotalBytes").Int(a.layout.PageSize)

		blocks := pageObj.Name("Blocks").Array()
		for i := 0; i < a.config.ObjectsPerPage; i++ {
			block := unsafe.Add(page, a.layout.DataOffset(i))

			blockObj := blocks.Object()
			blockObj.Name("Offset").Int(a.layout.DataOffset(i))
			blockObj.Name("Free").Bool(a.isOnFreeList(block))
			blockObj.End()
		}
		blocks.End()

		pageObj.End()
		pageIndex++
	}
	pagesObj.End()
}
