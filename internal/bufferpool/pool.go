// Package bufferpool implements the NUMA-local buffer pool that backs
// every BufferEntry handed to a RAID method or the rebuild engine. It
// mirrors the producer/consumer free-list split and lock separation
// of buildbarn's partitioning block allocator, generalized from a
// single growing free-offset list to two fixed-size lists that swap
// wholesale once the producer side crosses a threshold.
package bufferpool

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/ft-raid-core/internal/config"
	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/metrics"
	"github.com/Anthya1104/ft-raid-core/internal/numaalloc"
)

// BufferInfo describes the pool to construct: who owns it, the size
// of one block, and how many blocks to carve the allocation into.
type BufferInfo struct {
	Owner     string
	BlockSize uint64
	Count     int
}

// Pool is a fixed-capacity set of equal-size blocks drawn from one
// NUMA-local allocation. Blocks move consumer -> caller -> producer
// -> (swap) -> consumer; the pool never grows or shrinks after
// construction.
type Pool struct {
	info     BufferInfo
	socket   int
	alloc    numaalloc.Allocator
	raw      []byte
	allocErr error

	consumerMu sync.Mutex
	consumer   [][]byte

	producerMu sync.Mutex
	producer   [][]byte

	swapSize int
}

// NewPool partitions one NUMA-local allocation into info.Count equal
// blocks and enqueues them all into the consumer list. If the
// underlying allocation fails, NewPool still returns a non-nil Pool
// whose TryGet always returns nil, so callers can treat allocation
// failure and pool exhaustion uniformly rather than special-casing
// construction errors on every call site.
func NewPool(info BufferInfo, socket int, alloc numaalloc.Allocator) (*Pool, error) {
	if info.Count <= 0 {
		return nil, fmt.Errorf("bufferpool: count must be positive, got %d", info.Count)
	}
	if info.BlockSize == 0 {
		return nil, fmt.Errorf("bufferpool: block size must be positive")
	}

	p := &Pool{
		info:     info,
		socket:   socket,
		alloc:    alloc,
		swapSize: info.Count * config.BufferPoolSwapThresholdPct / 100,
	}

	raw, err := alloc.AllocFromSocket(info.BlockSize, info.Count, socket)
	if err != nil {
		p.allocErr = err
		return p, nil
	}
	p.raw = raw

	p.consumer = make([][]byte, 0, info.Count)
	for i := 0; i < info.Count; i++ {
		start := uint64(i) * info.BlockSize
		p.consumer = append(p.consumer, raw[start:start+info.BlockSize])
	}
	return p, nil
}

// Owner reports the name this pool was constructed with.
func (p *Pool) Owner() string { return p.info.Owner }

// AllocError reports the error returned by the underlying allocator
// at construction time, or nil if allocation succeeded.
func (p *Pool) AllocError() error { return p.allocErr }

// TryGet removes and returns one block, or nil if none are
// available. When the consumer list is empty, it first checks
// whether the producer list has crossed the swap threshold and, if
// so, swaps the two lists wholesale before retrying.
func (p *Pool) TryGet() []byte {
	p.consumerMu.Lock()
	defer p.consumerMu.Unlock()

	if len(p.consumer) == 0 {
		p.maybeSwap()
	}
	if len(p.consumer) == 0 {
		metrics.BufferPoolExhausted.WithLabelValues(p.info.Owner).Inc()
		return nil
	}

	block := p.consumer[0]
	p.consumer = p.consumer[1:]
	metrics.BufferPoolAllocations.WithLabelValues(p.info.Owner).Inc()
	metrics.BufferPoolOutstanding.WithLabelValues(p.info.Owner).Inc()
	return block
}

// maybeSwap moves the producer list onto the consumer list if the
// producer has accumulated more than swapSize blocks. Caller must
// hold consumerMu.
func (p *Pool) maybeSwap() {
	p.producerMu.Lock()
	defer p.producerMu.Unlock()

	if len(p.producer) <= p.swapSize {
		return
	}
	p.consumer = p.producer
	p.producer = nil
	metrics.BufferPoolSwaps.WithLabelValues(p.info.Owner).Inc()
}

// Return hands a block back to the pool. It always lands on the
// producer list; only a swap moves it back to the consumer side. A
// nil block is refused rather than enqueued, so a phantom entry never
// becomes indistinguishable from a live one once swapped in.
func (p *Pool) Return(block []byte) {
	if block == nil {
		logrus.Warnf("bufferpool: %s Return called with nil block, ignoring", p.info.Owner)
		return
	}

	p.producerMu.Lock()
	p.producer = append(p.producer, block)
	p.producerMu.Unlock()

	metrics.BufferPoolReturns.WithLabelValues(p.info.Owner).Inc()
	metrics.BufferPoolOutstanding.WithLabelValues(p.info.Owner).Dec()
}

// GetEntry is a convenience wrapper that calls TryGet and, on
// success, wraps the block as a BufferEntry whose Release returns it
// to this pool. blkCnt is the number of logical blocks the returned
// buffer represents (1 unless the pool's BlockSize spans more than
// one logical block).
func (p *Pool) GetEntry(blkCnt uint64, isParity bool) (entry.BufferEntry, bool) {
	block := p.TryGet()
	if block == nil {
		return entry.BufferEntry{}, false
	}
	return entry.NewBufferEntry(block, blkCnt, isParity, func() { p.Return(block) }), true
}

// Close releases the pool's backing allocation. It does not wait for
// outstanding blocks to be returned; callers must ensure nothing is
// still checked out.
func (p *Pool) Close() error {
	if p.raw == nil {
		return nil
	}
	return p.alloc.Free(p.raw)
}
