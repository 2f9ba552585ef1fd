// Package demo wires every FT-core component into one in-memory
// array so the CLI has something concrete to drive: write a stripe,
// read it back, fail a device, rebuild it through the real N-to-M
// rebuild engine, and read it back again. It is deliberately simple
// single-stripe storage, not a second implementation of the RAID
// method's addressing logic.
package demo

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/ft-raid-core/internal/bufferpool"
	"github.com/Anthya1104/ft-raid-core/internal/codec"
	"github.com/Anthya1104/ft-raid-core/internal/debuginfo"
	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/geometry"
	"github.com/Anthya1104/ft-raid-core/internal/iodispatch"
	"github.com/Anthya1104/ft-raid-core/internal/metrics"
	"github.com/Anthya1104/ft-raid-core/internal/numaalloc"
	"github.com/Anthya1104/ft-raid-core/internal/raid"
	"github.com/Anthya1104/ft-raid-core/internal/rebuild"
)

// stateHistoryCapacity bounds how many RaidState samples sampleState
// keeps around; the demo CLI is short-lived so this only needs to
// cover one run's worth of transitions.
const stateHistoryCapacity = 32

// Array is a single-stripe RAID6 array backed by plain in-memory
// "disks", one slice per chunk position.
type Array struct {
	method       *raid.RAID6Method
	codec        *codec.Codec
	dataCnt      uint64
	blksPerChunk uint64
	blockSize    uint64
	chunkBytes   uint64

	disks     [][]byte // nil entry == device reads as faulted
	devStates []raid.DeviceState

	stateMaker *debuginfo.Maker[raid.RaidState]
}

// NewArray builds a dataCnt-data-chunk RAID6 array.
func NewArray(dataCnt, blksPerChunk, blockSize uint64) (*Array, error) {
	method, err := raid.NewRAID6Method(blksPerChunk, dataCnt, blockSize)
	if err != nil {
		return nil, err
	}
	c, err := codec.NewCodec(int(dataCnt), 2)
	if err != nil {
		return nil, err
	}
	chunksPerStripe := dataCnt + 2
	disks := make([][]byte, chunksPerStripe)
	devStates := make([]raid.DeviceState, chunksPerStripe)
	for i := range disks {
		disks[i] = make([]byte, blksPerChunk*blockSize)
		devStates[i] = raid.DeviceNormal
	}

	a := &Array{
		method:       method,
		codec:        c,
		dataCnt:      dataCnt,
		blksPerChunk: blksPerChunk,
		blockSize:    blockSize,
		chunkBytes:   blksPerChunk * blockSize,
		disks:        disks,
		devStates:    devStates,
	}

	a.stateMaker = debuginfo.Register[raid.RaidState](
		"raid_state", stateHistoryCapacity, false, 0, true,
		func() raid.RaidState { return a.State() },
		func(s raid.RaidState) debuginfo.Okay {
			switch s {
			case raid.RaidNormal:
				return debuginfo.Pass
			case raid.RaidDegraded:
				return debuginfo.Warn
			default:
				return debuginfo.Fail
			}
		},
	)

	return a, nil
}

// sampleState records the array's current RaidState into the
// debug-info history and, when it differs from the previous sample,
// bumps the transition counter, so an operator can see a stripe move
// NORMAL -> DEGRADED -> NORMAL across a rebuild instead of only
// observing the instantaneous value.
func (a *Array) sampleState() {
	prev := a.stateMaker.History()
	a.stateMaker.Sample()
	cur := a.State()
	if len(prev) == 0 || prev[len(prev)-1] != cur {
		metrics.RaidStateTransitions.WithLabelValues(cur.String()).Inc()
	}
}

func (a *Array) dataPositions(stripe geometry.StripeId) []int {
	pIndex, qIndex := geometry.RAID6ParityIndices(stripe, a.dataCnt, a.dataCnt+2)
	positions := make([]int, 0, a.dataCnt)
	for i := uint64(0); i < a.dataCnt+2; i++ {
		if i == pIndex || i == qIndex {
			continue
		}
		positions = append(positions, int(i))
	}
	return positions
}

// WriteStripe pads data to exactly dataCnt*chunkBytes, splits it
// across the stripe's data chunk positions, computes parity via the
// method's MakeParity, and places everything on the in-memory disks
// at their rotated positions for this stripe.
func (a *Array) WriteStripe(stripe geometry.StripeId, data []byte) error {
	want := a.dataCnt * a.chunkBytes
	padded := make([]byte, want)
	copy(padded, data)

	dataChunks := make([][]byte, a.dataCnt)
	for i := uint64(0); i < a.dataCnt; i++ {
		dataChunks[i] = padded[i*a.chunkBytes : (i+1)*a.chunkBytes]
	}

	positions := a.dataPositions(stripe)
	for i, pos := range positions {
		copy(a.disks[pos], dataChunks[i])
	}

	parityEntries, err := a.method.MakeParity(stripe, dataChunks)
	if err != nil {
		return fmt.Errorf("demo: MakeParity failed: %w", err)
	}
	for _, pe := range parityEntries {
		chunkIdx := uint64(pe.Addr.Offset) / a.blksPerChunk
		copy(a.disks[chunkIdx], pe.Buffers[0].Base)
	}

	logrus.Infof("demo: wrote stripe %d (%d data bytes, %d parity chunks)", stripe, len(data), len(parityEntries))
	a.sampleState()
	return nil
}

// ReadStripe concatenates the stripe's data chunk positions in
// logical order.
func (a *Array) ReadStripe(stripe geometry.StripeId) ([]byte, error) {
	positions := a.dataPositions(stripe)
	out := make([]byte, 0, a.dataCnt*a.chunkBytes)
	for _, pos := range positions {
		if a.disks[pos] == nil || a.devStates[pos] != raid.DeviceNormal {
			return nil, fmt.Errorf("demo: chunk position %d is faulted, cannot read stripe %d directly", pos, stripe)
		}
		out = append(out, a.disks[pos]...)
	}
	return out, nil
}

// FailDevice marks a chunk position FAULT and drops its backing bytes.
func (a *Array) FailDevice(pos int) {
	a.devStates[pos] = raid.DeviceFault
	a.disks[pos] = nil
	logrus.Warnf("demo: device at chunk position %d marked FAULT", pos)
	a.sampleState()
}

// State reports the array's current RaidState from its device states.
func (a *Array) State() raid.RaidState {
	return a.method.GetRaidState(a.devStates)
}

// arrayDispatcher serves iodispatch.Unit requests directly against
// the array's in-memory disks, synchronously, standing in for a real
// I/O dispatcher in this demonstration.
type arrayDispatcher struct {
	a *Array
}

func (d *arrayDispatcher) Submit(unit iodispatch.Unit) error {
	pos := int(unit.Addr.Device)
	if pos < 0 || pos >= len(d.a.disks) {
		unit.Completion(1)
		return nil
	}
	switch unit.Dir {
	case iodispatch.DirectionRead:
		disk := d.a.disks[pos]
		if disk == nil {
			unit.Completion(1)
			return nil
		}
		copy(unit.Buffer, disk)
	case iodispatch.DirectionWrite:
		if d.a.disks[pos] == nil {
			d.a.disks[pos] = make([]byte, d.a.chunkBytes)
		}
		copy(d.a.disks[pos], unit.Buffer)
		d.a.devStates[pos] = raid.DeviceNormal
	}
	unit.Completion(0)
	return nil
}

// Rebuild reconstructs every FAULT chunk position in the given stripe
// through the real N-to-M rebuild engine: it reads survivors via
// GetRebuildGroup, reconstructs through a codec-bound recover
// function, and writes the result back, all driven by the array's
// in-memory dispatcher.
func (a *Array) Rebuild(stripe geometry.StripeId) error {
	var faulty []int
	for pos, s := range a.devStates {
		if s == raid.DeviceFault {
			faulty = append(faulty, pos)
		}
	}
	if len(faulty) == 0 {
		return nil
	}

	survivorAddrs, err := a.method.GetRebuildGroup(geometry.FtBlockAddress{Stripe: stripe, Offset: geometry.BlockOffset(uint64(faulty[0]) * a.blksPerChunk)}, a.devStates)
	if err != nil {
		return fmt.Errorf("demo: GetRebuildGroup failed: %w", err)
	}

	// The codec numbers chunks as data in logical order, then P, then Q;
	// map this stripe's rotated chunk positions onto that numbering.
	codecIdx := make(map[int]int, a.dataCnt+2)
	for i, pos := range a.dataPositions(stripe) {
		codecIdx[pos] = i
	}
	pIndex, qIndex := geometry.RAID6ParityIndices(stripe, a.dataCnt, a.dataCnt+2)
	codecIdx[int(pIndex)] = int(a.dataCnt)
	codecIdx[int(qIndex)] = int(a.dataCnt) + 1

	survivorIdx := make([]int, len(survivorAddrs))
	srcDevices := make([]entry.DeviceHandle, len(survivorAddrs))
	for i, addr := range survivorAddrs {
		pos := int(uint64(addr.Offset) / a.blksPerChunk)
		survivorIdx[i] = codecIdx[pos]
		srcDevices[i] = entry.DeviceHandle(pos)
	}

	missingIdx := make([]int, len(faulty))
	dstDevices := make([]entry.DeviceHandle, len(faulty))
	for i, pos := range faulty {
		missingIdx[i] = codecIdx[pos]
		dstDevices[i] = entry.DeviceHandle(pos)
	}

	recoverFn := rebuild.RecoverFunc(a.codec.BindRecoverFunc(int(a.chunkBytes), survivorIdx, missingIdx))

	alloc := numaalloc.NewHeapAllocator()
	srcPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "demo_rebuild_src", BlockSize: a.chunkBytes * uint64(len(srcDevices)), Count: 2}, 0, alloc)
	if err != nil {
		return err
	}
	dstPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "demo_rebuild_dst", BlockSize: a.chunkBytes * uint64(len(dstDevices)), Count: 2}, 0, alloc)
	if err != nil {
		return err
	}

	method := rebuild.NewNToMRebuild("demo_rebuild", srcDevices, dstDevices, recoverFn, srcPool, dstPool, a.chunkBytes, &arrayDispatcher{a: a})

	start := time.Now()
	var wg sync.WaitGroup
	var result int
	wg.Add(1)
	method.Recover(0, stripe, rebuild.PartitionPhysicalSize{BlksPerChunk: a.blksPerChunk}, func(r int) {
		result = r
		wg.Done()
	})
	wg.Wait()

	outcome := "success"
	if result != rebuild.ResultSuccess {
		outcome = fmt.Sprintf("failed_%d", result)
	}
	metrics.RebuildJobsTotal.WithLabelValues(outcome).Inc()
	metrics.RebuildLatencySeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if result != rebuild.ResultSuccess {
		return fmt.Errorf("demo: rebuild failed with result code %d", result)
	}
	logrus.Infof("demo: rebuilt %d chunk(s) for stripe %d", len(faulty), stripe)
	a.sampleState()
	return nil
}
