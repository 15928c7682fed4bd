package objalloc

// Statistics is a snapshot of an allocator's bookkeeping counters. ObjectSize and
// PageSize are fixed at construction; the remaining fields rise and fall with
// Allocate and Free.
type Statistics struct {
	ObjectSize    int
	PageSize      int
	FreeObjects   int
	ObjectsInUse  int
	PagesInUse    int
	MostObjects   int
	Allocations   int
	Deallocations int
}

func (s *Statistics) Clear() {
	s.ObjectSize = 0
	s.PageSize = 0
	s.FreeObjects = 0
	s.ObjectsInUse = 0
	s.PagesInUse = 0
	s.MostObjects = 0
	s.Allocations = 0
	s.Deallocations = 0
}

// AddAllocation records one successful allocation. MostObjects tracks the cumulative
// allocation count's high-water mark.
func (s *Statistics) AddAllocation() {
	s.Allocations++
	s.ObjectsInUse++

	if s.Allocations > s.MostObjects {
		s.MostObjects = s.Allocations
	}
}

// AddDeallocation records one successful free.
func (s *Statistics) AddDeallocation() {
	s.Deallocations++
	s.ObjectsInUse--
}
