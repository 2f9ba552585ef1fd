// Package raid implements the polymorphic RAID method layer: logical
// <-> FT address translation, parity computation, rebuild-group
// enumeration, and array health classification. Dispatch across RAID
// kinds is a tagged interface picked once at partition construction,
// never a runtime type switch on the hot path.
package raid

import (
	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/geometry"
)

// Method is the capability set every RAID kind implements. A
// partition picks one concrete Method at construction and never
// switches kinds for its lifetime.
type Method interface {
	// Translate maps a logical block range to one or more FT ranges,
	// skipping parity chunks. It returns pure addresses; no buffers.
	Translate(addr geometry.LogicalBlockAddress, blkCnt uint64) ([]geometry.FtBlockAddress, []uint64, error)

	// Convert splits a LogicalWriteEntry's payload into FtWriteEntries
	// using Translate, slicing the caller's buffers accordingly.
	Convert(e entry.LogicalWriteEntry) ([]entry.FtWriteEntry, error)

	// MakeParity computes and returns the parity FtWriteEntries for
	// one full stripe's worth of data buffers. RAID kinds with no
	// redundancy return an empty slice.
	MakeParity(stripe geometry.StripeId, dataChunks [][]byte) ([]entry.FtWriteEntry, error)

	// GetRebuildGroup returns the FT addresses of every surviving
	// chunk in the stripe containing faultyAddr, given the stripe's
	// device-state vector (indexed by chunk position).
	GetRebuildGroup(faultyAddr geometry.FtBlockAddress, devStates []DeviceState) ([]geometry.FtBlockAddress, error)

	// GetRaidState classifies array health from a stripe's device
	// states.
	GetRaidState(devStates []DeviceState) RaidState

	// CheckNumofDevsToConfigure validates a proposed device count for
	// this RAID kind.
	CheckNumofDevsToConfigure(n int) error

	// Size returns this method's immutable geometry.
	Size() geometry.FtSize
}
