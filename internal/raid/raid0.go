package raid

import (
	"fmt"

	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/geometry"
)

// RAID0Method implements identity geometry: logical and FT address
// spaces coincide, there is no parity, and a single abnormal device
// is already fatal.
type RAID0Method struct {
	size geometry.FtSize
}

// NewRAID0Method builds a RAID0 method over chunksPerStripe devices,
// blksPerChunk blocks each.
func NewRAID0Method(blksPerChunk, chunksPerStripe uint64) (*RAID0Method, error) {
	sz, err := geometry.NewFtSize(blksPerChunk, chunksPerStripe, 0)
	if err != nil {
		return nil, fmt.Errorf("raid0: %w", err)
	}
	return &RAID0Method{size: sz}, nil
}

func (m *RAID0Method) Size() geometry.FtSize { return m.size }

// Translate copies stripe and offset unchanged: RAID0 has no parity
// to skip.
func (m *RAID0Method) Translate(addr geometry.LogicalBlockAddress, blkCnt uint64) ([]geometry.FtBlockAddress, []uint64, error) {
	return []geometry.FtBlockAddress{{Stripe: addr.Stripe, Offset: addr.Offset}}, []uint64{blkCnt}, nil
}

// Convert produces exactly one FtWriteEntry covering the whole
// payload, per spec section 4.2.
func (m *RAID0Method) Convert(e entry.LogicalWriteEntry) ([]entry.FtWriteEntry, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("raid0: %w", err)
	}
	return []entry.FtWriteEntry{{
		Addr:    geometry.FtBlockAddress{Stripe: e.Addr.Stripe, Offset: e.Addr.Offset},
		BlkCnt:  e.BlkCnt,
		Buffers: e.Buffers,
	}}, nil
}

// MakeParity is a no-op: RAID0 carries no redundancy.
func (m *RAID0Method) MakeParity(stripe geometry.StripeId, dataChunks [][]byte) ([]entry.FtWriteEntry, error) {
	return nil, nil
}

// GetRebuildGroup always fails: without parity there is nothing to
// reconstruct from.
func (m *RAID0Method) GetRebuildGroup(faultyAddr geometry.FtBlockAddress, devStates []DeviceState) ([]geometry.FtBlockAddress, error) {
	return nil, fmt.Errorf("raid0: no redundancy, chunk at stripe %d cannot be rebuilt", faultyAddr.Stripe)
}

// GetRaidState is NORMAL iff every device is NORMAL; any single
// abnormal device is fatal, since there is no redundancy.
func (m *RAID0Method) GetRaidState(devStates []DeviceState) RaidState {
	if CountAbnormal(devStates) == 0 {
		return RaidNormal
	}
	return RaidFailure
}

// CheckNumofDevsToConfigure requires at least one device.
func (m *RAID0Method) CheckNumofDevsToConfigure(n int) error {
	if n < 1 {
		return fmt.Errorf("raid0: requires at least 1 device, got %d", n)
	}
	return nil
}

var _ Method = (*RAID0Method)(nil)
