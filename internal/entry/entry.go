// Package entry holds the write-entry and buffer-view types shared by
// the raid, bufferpool, and rebuild packages. It is kept free of those
// packages' own dependencies so none of them need to import each
// other just to pass a buffer around.
package entry

import (
	"fmt"

	"github.com/Anthya1104/ft-raid-core/internal/geometry"
)

// DeviceHandle identifies a physical device. Device-state observation
// and the I/O dispatcher are both indexed by this handle.
type DeviceHandle int

// PhysicalBlockAddress is a (device, device-LBA) tuple.
type PhysicalBlockAddress struct {
	Device DeviceHandle
	LBA    uint64
}

// BufferEntry is a borrowed view over a contiguous range of memory.
// Release returns the view to whatever pool produced it, if any; it
// is always safe to call, including on a zero-value BufferEntry.
type BufferEntry struct {
	Base     []byte
	BlkCnt   uint64
	IsParity bool
	release  func()
}

// NewBufferEntry wraps base as a BufferEntry of blkCnt blocks. release
// is invoked at most once by Release and may be nil.
func NewBufferEntry(base []byte, blkCnt uint64, isParity bool, release func()) BufferEntry {
	return BufferEntry{Base: base, BlkCnt: blkCnt, IsParity: isParity, release: release}
}

// Release returns the buffer to its origin pool, if it has one.
func (b *BufferEntry) Release() {
	if b.release != nil {
		r := b.release
		b.release = nil
		r()
	}
}

// LogicalWriteEntry addresses only data blocks; parity is invisible
// at this layer. Invariant: total buffer blocks equals BlkCnt.
type LogicalWriteEntry struct {
	Addr    geometry.LogicalBlockAddress
	BlkCnt  uint64
	Buffers []BufferEntry
}

// FtWriteEntry is the same shape as LogicalWriteEntry, re-addressed
// into the fault-tolerant stripe (which includes parity slots).
type FtWriteEntry struct {
	Addr    geometry.FtBlockAddress
	BlkCnt  uint64
	Buffers []BufferEntry
}

// PhysicalWriteEntry is the same shape, re-addressed to a physical
// device and LBA.
type PhysicalWriteEntry struct {
	Addr    PhysicalBlockAddress
	BlkCnt  uint64
	Buffers []BufferEntry
}

func bufferBlockTotal(buffers []BufferEntry) uint64 {
	var total uint64
	for _, b := range buffers {
		total += b.BlkCnt
	}
	return total
}

// Validate checks the total-buffer-blocks-equals-BlkCnt invariant.
func (e LogicalWriteEntry) Validate() error {
	if got := bufferBlockTotal(e.Buffers); got != e.BlkCnt {
		return fmt.Errorf("entry: logical write entry declares %d blocks but buffers total %d", e.BlkCnt, got)
	}
	return nil
}

// Validate checks the total-buffer-blocks-equals-BlkCnt invariant.
func (e FtWriteEntry) Validate() error {
	if got := bufferBlockTotal(e.Buffers); got != e.BlkCnt {
		return fmt.Errorf("entry: ft write entry declares %d blocks but buffers total %d", e.BlkCnt, got)
	}
	return nil
}

// Bytes concatenates every buffer's bytes in order into one
// contiguous slice.
func (e FtWriteEntry) Bytes() []byte {
	out := make([]byte, 0, len(e.Buffers)*64)
	for _, b := range e.Buffers {
		out = append(out, b.Base...)
	}
	return out
}

// SplitBuffers partitions buffers (whose total block count must equal
// the sum of counts) into len(counts) groups of sub-views, each group
// covering exactly counts[i] blocks in order. It is used to carve a
// LogicalWriteEntry's payload into the one or two FtWriteEntry ranges
// Translate produces when parity chunks land in the middle of a
// logical range. Sub-views share backing arrays with the originals
// and carry no release callback of their own; only the original
// BufferEntry values should be released.
func SplitBuffers(buffers []BufferEntry, blockSizeBytes uint64, counts []uint64) ([][]BufferEntry, error) {
	var wanted uint64
	for _, c := range counts {
		wanted += c
	}
	if got := bufferBlockTotal(buffers); got != wanted {
		return nil, fmt.Errorf("entry: SplitBuffers wants %d blocks total, buffers provide %d", wanted, got)
	}

	result := make([][]BufferEntry, len(counts))
	bi, consumed := 0, uint64(0)
	for segIdx, cnt := range counts {
		remaining := cnt
		for remaining > 0 {
			if bi >= len(buffers) {
				return nil, fmt.Errorf("entry: SplitBuffers ran out of buffers before satisfying segment %d", segIdx)
			}
			avail := buffers[bi].BlkCnt - consumed
			take := avail
			if take > remaining {
				take = remaining
			}
			byteStart := consumed * blockSizeBytes
			byteEnd := (consumed + take) * blockSizeBytes
			result[segIdx] = append(result[segIdx], NewBufferEntry(
				buffers[bi].Base[byteStart:byteEnd], take, buffers[bi].IsParity, nil))

			consumed += take
			remaining -= take
			if consumed == buffers[bi].BlkCnt {
				bi++
				consumed = 0
			}
		}
	}
	return result, nil
}
