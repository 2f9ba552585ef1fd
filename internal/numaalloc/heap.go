package numaalloc

import "os"

// HeapAllocator is a portable Allocator backed by plain Go heap
// memory. It is the allocator the tests and the demo array use, and
// the only one built on non-Linux platforms, where hugepage mmap is
// unavailable; it never fails.
type HeapAllocator struct{}

// NewHeapAllocator returns an Allocator with no NUMA or hugepage
// backing, suitable for tests and non-Linux platforms.
func NewHeapAllocator() *HeapAllocator { return &HeapAllocator{} }

func (h *HeapAllocator) AllocFromSocket(blockSize uint64, count int, socket int) ([]byte, error) {
	return make([]byte, blockSize*uint64(count)), nil
}

func (h *HeapAllocator) Free(buf []byte) error { return nil }

func (h *HeapAllocator) DefaultPageSize() uint64 { return uint64(os.Getpagesize()) }

var _ Allocator = (*HeapAllocator)(nil)
