package objalloc

import "github.com/pkg/errors"

// OutOfMemoryError is the error returned when the underlying memory source could not
// satisfy a page or header request
var OutOfMemoryError error = errors.New("the memory source could not satisfy the request")

// NoPagesError is the error returned from Allocate when the allocator's own page budget
// is exhausted, even though the memory source may still have memory available
var NoPagesError error = errors.New("out of logical memory: the maximum page count has been reached")

// MultipleFreeError is the error returned from Free in debug mode when the object being
// freed is already present on the free list
var MultipleFreeError error = errors.New("object has already been freed")

// BadBoundaryError is the error returned from Free in debug mode when the pointer being
// freed is not aligned to any block start within its owning page, or belongs to no page
var BadBoundaryError error = errors.New("object is not on a block boundary")

// CorruptedBlockError is the error returned from Free in debug mode when the pad bytes
// flanking the object's data have been overwritten
var CorruptedBlockError error = errors.New("object's pad bytes have been overwritten")
