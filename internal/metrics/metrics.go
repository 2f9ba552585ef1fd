// Package metrics holds the Prometheus collectors shared across the
// buffer pool, rebuild engine, and RAID method layer. Collectors are
// package-level vars registered once via sync.Once, following the
// registration pattern buildbarn's block allocator uses.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

var (
	BufferPoolAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ftraid",
			Subsystem: "bufferpool",
			Name:      "allocations_total",
			Help:      "Number of times a pool successfully handed out a block via TryGet.",
		}, []string{"owner"})

	BufferPoolExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ftraid",
			Subsystem: "bufferpool",
			Name:      "exhausted_total",
			Help:      "Number of TryGet calls that returned nil because no blocks were available.",
		}, []string{"owner"})

	BufferPoolReturns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ftraid",
			Subsystem: "bufferpool",
			Name:      "returns_total",
			Help:      "Number of blocks returned to a pool.",
		}, []string{"owner"})

	BufferPoolSwaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ftraid",
			Subsystem: "bufferpool",
			Name:      "swaps_total",
			Help:      "Number of times the producer list was swapped into the consumer list.",
		}, []string{"owner"})

	BufferPoolOutstanding = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ftraid",
			Subsystem: "bufferpool",
			Name:      "outstanding_blocks",
			Help:      "Blocks currently checked out of the pool (not on either free list).",
		}, []string{"owner"})

	RebuildLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ftraid",
			Subsystem: "rebuild",
			Name:      "latency_seconds",
			Help:      "Wall time from READ_ISSUED to DONE for one rebuild job.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"})

	RebuildJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ftraid",
			Subsystem: "rebuild",
			Name:      "jobs_total",
			Help:      "Rebuild jobs by terminal outcome.",
		}, []string{"outcome"})

	RaidStateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ftraid",
			Subsystem: "raid",
			Name:      "state_transitions_total",
			Help:      "Observed RaidState transitions, labeled by the state entered.",
		}, []string{"state"})
)

// Register installs every collector into reg exactly once per
// process. Safe to call multiple times; only the first call has
// effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			BufferPoolAllocations,
			BufferPoolExhausted,
			BufferPoolReturns,
			BufferPoolSwaps,
			BufferPoolOutstanding,
			RebuildLatencySeconds,
			RebuildJobsTotal,
			RaidStateTransitions,
		)
	})
}
