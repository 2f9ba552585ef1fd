package raid

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/ft-raid-core/internal/codec"
	"github.com/Anthya1104/ft-raid-core/internal/config"
	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/geometry"
)

// RAID6Method rotates P and Q parity across the stripe: for stripe s,
// pIndex=(s+dataCnt) mod chunksPerStripe and qIndex=(pIndex+1) mod
// chunksPerStripe, so over chunksPerStripe consecutive stripes every
// device hosts parity equally. The erasure math itself is delegated
// to codec.Codec, which implements a uniform 2-parity Cauchy code
// over GF(2^8) (see DESIGN.md for why this departs from the
// classic XOR-P/RS-Q split only the glossary mentions).
type RAID6Method struct {
	size           geometry.FtSize
	dataCnt        uint64
	blockSizeBytes uint64
	codec          *codec.Codec
}

// NewRAID6Method builds a RAID6 method with dataCnt data chunks, 2
// parity chunks, blksPerChunk blocks per chunk, and blockSizeBytes
// bytes per block.
func NewRAID6Method(blksPerChunk, dataCnt, blockSizeBytes uint64) (*RAID6Method, error) {
	if dataCnt == 0 {
		return nil, fmt.Errorf("raid6: dataCnt must be > 0")
	}
	sz, err := geometry.NewFtSize(blksPerChunk, dataCnt, config.RAID6ParityCnt)
	if err != nil {
		return nil, fmt.Errorf("raid6: %w", err)
	}
	c, err := codec.NewCodec(int(dataCnt), config.RAID6ParityCnt)
	if err != nil {
		return nil, fmt.Errorf("raid6: %w", err)
	}
	return &RAID6Method{size: sz, dataCnt: dataCnt, blockSizeBytes: blockSizeBytes, codec: c}, nil
}

func (m *RAID6Method) Size() geometry.FtSize { return m.size }

func (m *RAID6Method) parityIndices(stripe geometry.StripeId) (pIndex, qIndex uint64) {
	return geometry.RAID6ParityIndices(stripe, m.dataCnt, m.size.ChunksPerStripe)
}

// Translate implements spec section 4.3 exactly: the split/wrap case
// shifts the whole range by one chunk; the adjacent case shifts,
// splits, or passes the range through depending on where parity falls
// relative to [startOffset, startOffset+blkCnt).
func (m *RAID6Method) Translate(addr geometry.LogicalBlockAddress, blkCnt uint64) ([]geometry.FtBlockAddress, []uint64, error) {
	if blkCnt == 0 {
		return nil, nil, fmt.Errorf("raid6: Translate requires blkCnt > 0")
	}

	pIndex, qIndex := m.parityIndices(addr.Stripe)
	blksPerChunk := m.size.BlksPerChunk
	startOffset := uint64(addr.Offset)

	if geometry.IsSplitPlacement(qIndex) {
		return []geometry.FtBlockAddress{{Stripe: addr.Stripe, Offset: geometry.BlockOffset(startOffset + blksPerChunk)}},
			[]uint64{blkCnt}, nil
	}

	pOffset := pIndex * blksPerChunk
	paritySize := config.RAID6ParityCnt * blksPerChunk
	startIdx := startOffset / blksPerChunk
	lastIdx := (startOffset + blkCnt - 1) / blksPerChunk

	switch {
	case pIndex <= startIdx:
		return []geometry.FtBlockAddress{{Stripe: addr.Stripe, Offset: geometry.BlockOffset(startOffset + paritySize)}},
			[]uint64{blkCnt}, nil

	case startIdx < pIndex && pIndex <= lastIdx:
		firstCnt := pOffset - startOffset
		secondCnt := blkCnt - firstCnt
		return []geometry.FtBlockAddress{
				{Stripe: addr.Stripe, Offset: geometry.BlockOffset(startOffset)},
				{Stripe: addr.Stripe, Offset: geometry.BlockOffset(pOffset + paritySize)},
			},
			[]uint64{firstCnt, secondCnt}, nil

	default: // pIndex > lastIdx
		return []geometry.FtBlockAddress{{Stripe: addr.Stripe, Offset: geometry.BlockOffset(startOffset)}},
			[]uint64{blkCnt}, nil
	}
}

// Convert splits e's payload into one or two FtWriteEntries using
// Translate's ranges.
func (m *RAID6Method) Convert(e entry.LogicalWriteEntry) ([]entry.FtWriteEntry, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("raid6: %w", err)
	}

	addrs, counts, err := m.Translate(e.Addr, e.BlkCnt)
	if err != nil {
		return nil, err
	}

	groups, err := entry.SplitBuffers(e.Buffers, m.blockSizeBytes, counts)
	if err != nil {
		return nil, fmt.Errorf("raid6: Convert: %w", err)
	}

	out := make([]entry.FtWriteEntry, len(addrs))
	for i, a := range addrs {
		out[i] = entry.FtWriteEntry{Addr: a, BlkCnt: counts[i], Buffers: groups[i]}
	}
	return out, nil
}

// MakeParity computes P and Q for one full stripe's data chunks and
// places them at the stripe's rotated parity offsets.
func (m *RAID6Method) MakeParity(stripe geometry.StripeId, dataChunks [][]byte) ([]entry.FtWriteEntry, error) {
	if uint64(len(dataChunks)) != m.dataCnt {
		return nil, fmt.Errorf("raid6: MakeParity expects %d data chunks, got %d", m.dataCnt, len(dataChunks))
	}
	chunkSize := m.size.BlksPerChunk * m.blockSizeBytes
	for i, c := range dataChunks {
		if uint64(len(c)) != chunkSize {
			return nil, fmt.Errorf("raid6: data chunk %d has %d bytes, want %d", i, len(c), chunkSize)
		}
	}

	parity := [][]byte{make([]byte, chunkSize), make([]byte, chunkSize)}
	if err := m.codec.Encode(dataChunks, parity); err != nil {
		return nil, fmt.Errorf("raid6: MakeParity: %w", err)
	}

	pIndex, qIndex := m.parityIndices(stripe)
	blksPerChunk := m.size.BlksPerChunk

	pEntry := entry.FtWriteEntry{
		Addr:    geometry.FtBlockAddress{Stripe: stripe, Offset: geometry.BlockOffset(pIndex * blksPerChunk)},
		BlkCnt:  blksPerChunk,
		Buffers: []entry.BufferEntry{entry.NewBufferEntry(parity[0], blksPerChunk, true, nil)},
	}
	qEntry := entry.FtWriteEntry{
		Addr:    geometry.FtBlockAddress{Stripe: stripe, Offset: geometry.BlockOffset(qIndex * blksPerChunk)},
		BlkCnt:  blksPerChunk,
		Buffers: []entry.BufferEntry{entry.NewBufferEntry(parity[1], blksPerChunk, true, nil)},
	}

	logrus.Debugf("[RAID6] stripe %d parity placed at P=%d Q=%d", stripe, pIndex, qIndex)

	if pEntry.Addr.Offset < qEntry.Addr.Offset {
		return []entry.FtWriteEntry{pEntry, qEntry}, nil
	}
	return []entry.FtWriteEntry{qEntry, pEntry}, nil
}

// GetRebuildGroup returns the FT chunk-start addresses of every
// surviving (NORMAL) chunk in faultyAddr's stripe, excluding the
// faulty chunk's own position.
func (m *RAID6Method) GetRebuildGroup(faultyAddr geometry.FtBlockAddress, devStates []DeviceState) ([]geometry.FtBlockAddress, error) {
	if uint64(len(devStates)) != m.size.ChunksPerStripe {
		return nil, fmt.Errorf("raid6: GetRebuildGroup expects %d device states, got %d", m.size.ChunksPerStripe, len(devStates))
	}
	faultyChunk := uint64(faultyAddr.Offset) / m.size.BlksPerChunk

	group := make([]geometry.FtBlockAddress, 0, m.size.ChunksPerStripe-1)
	for pos := uint64(0); pos < m.size.ChunksPerStripe; pos++ {
		if pos == faultyChunk {
			continue
		}
		if devStates[pos] != DeviceNormal {
			continue
		}
		group = append(group, geometry.FtBlockAddress{Stripe: faultyAddr.Stripe, Offset: geometry.BlockOffset(pos * m.size.BlksPerChunk)})
	}
	return group, nil
}

// GetRaidState is NORMAL with zero abnormal devices, DEGRADED with
// one or two, FAILURE with three or more.
func (m *RAID6Method) GetRaidState(devStates []DeviceState) RaidState {
	switch abnormal := CountAbnormal(devStates); {
	case abnormal == 0:
		return RaidNormal
	case abnormal <= 2:
		return RaidDegraded
	default:
		return RaidFailure
	}
}

// CheckNumofDevsToConfigure requires at least 4 devices (2 data + 2 parity).
func (m *RAID6Method) CheckNumofDevsToConfigure(n int) error {
	if n < config.MinRAID6Devices {
		return fmt.Errorf("raid6: requires at least %d disks (2+ data + 2 parity), got %d", config.MinRAID6Devices, n)
	}
	return nil
}

var _ Method = (*RAID6Method)(nil)
