//go:build linux

package numaalloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const defaultHugepageSize = 2 * 1024 * 1024 // x86_64 default hugetlbfs page size

// HugepageAllocator backs buffer pools with anonymous MAP_HUGETLB
// mappings. Socket-local placement is left to the kernel's
// first-touch NUMA policy (Go has no portable setns/mbind binding in
// the standard ecosystem); madvise(MADV_HUGEPAGE) is issued as a
// best-effort hint either way.
type HugepageAllocator struct{}

// NewHugepageAllocator returns a Linux hugepage-backed Allocator.
func NewHugepageAllocator() *HugepageAllocator { return &HugepageAllocator{} }

func (h *HugepageAllocator) DefaultPageSize() uint64 { return defaultHugepageSize }

func (h *HugepageAllocator) AllocFromSocket(blockSize uint64, count int, socket int) ([]byte, error) {
	want := blockSize * uint64(count)
	pageSize := h.DefaultPageSize()
	pages := (want + pageSize - 1) / pageSize
	allocSize := pages * pageSize

	b, err := unix.Mmap(-1, 0, int(allocSize), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		// Hugepage pools may be exhausted or unconfigured; fall back
		// to a regular anonymous mapping rather than failing the pool
		// outright, matching the spec's allowance for degraded
		// buffer pools over a hard init failure.
		b, err = unix.Mmap(-1, 0, int(allocSize), unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return nil, fmt.Errorf("numaalloc: mmap %d bytes for socket %d: %w", allocSize, socket, err)
		}
	}
	_ = unix.Madvise(b, unix.MADV_HUGEPAGE)
	return b, nil
}

func (h *HugepageAllocator) Free(buf []byte) error {
	if buf == nil {
		return nil
	}
	return unix.Munmap(buf)
}

var _ Allocator = (*HugepageAllocator)(nil)
