package rebuild_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthya1104/ft-raid-core/internal/bufferpool"
	"github.com/Anthya1104/ft-raid-core/internal/codec"
	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/geometry"
	"github.com/Anthya1104/ft-raid-core/internal/iodispatch"
	"github.com/Anthya1104/ft-raid-core/internal/numaalloc"
	"github.com/Anthya1104/ft-raid-core/internal/rebuild"
)

// fakeDispatcher services a Unit synchronously against an in-memory
// backing store keyed by (device, lba), simulating disks for tests.
// Reads from a device in failDev complete with ResultReadFailed.
type fakeDispatcher struct {
	mu      sync.Mutex
	store   map[entry.PhysicalBlockAddress][]byte
	failDev map[entry.DeviceHandle]bool
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{store: make(map[entry.PhysicalBlockAddress][]byte), failDev: make(map[entry.DeviceHandle]bool)}
}

func (f *fakeDispatcher) Submit(unit iodispatch.Unit) error {
	f.mu.Lock()
	fail := f.failDev[unit.Addr.Device]
	f.mu.Unlock()

	if fail && unit.Dir == iodispatch.DirectionRead {
		unit.Completion(rebuild.ResultReadFailed)
		return nil
	}

	switch unit.Dir {
	case iodispatch.DirectionRead:
		f.mu.Lock()
		stored := f.store[unit.Addr]
		f.mu.Unlock()
		copy(unit.Buffer, stored)
	case iodispatch.DirectionWrite:
		cp := append([]byte(nil), unit.Buffer...)
		f.mu.Lock()
		f.store[unit.Addr] = cp
		f.mu.Unlock()
	}
	unit.Completion(0)
	return nil
}

func (f *fakeDispatcher) put(addr entry.PhysicalBlockAddress, data []byte) {
	f.mu.Lock()
	f.store[addr] = append([]byte(nil), data...)
	f.mu.Unlock()
}

func (f *fakeDispatcher) get(addr entry.PhysicalBlockAddress) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[addr]
}

func TestNToMRebuild_SingleChunkRecoverAndWrite(t *testing.T) {
	const chunkSize = 8
	c, err := codec.NewCodec(2, 2)
	require.NoError(t, err)

	data0 := []byte("AAAAAAAA")
	data1 := []byte("BBBBBBBB")
	parity := [][]byte{make([]byte, chunkSize), make([]byte, chunkSize)}
	require.NoError(t, c.Encode([][]byte{data0, data1}, parity))

	disp := newFakeDispatcher()
	pSize := rebuild.PartitionPhysicalSize{StartLba: 0, BlksPerChunk: 1}
	stripe := geometry.StripeId(0)
	lba := uint64(0)

	// Chunk 1 (data1) is missing; survivors are chunk 0 (data), chunk 2
	// (P), chunk 3 (Q), in that device order.
	srcDevices := []entry.DeviceHandle{0, 2, 3}
	disp.put(entry.PhysicalBlockAddress{Device: 0, LBA: lba}, data0)
	disp.put(entry.PhysicalBlockAddress{Device: 2, LBA: lba}, parity[0])
	disp.put(entry.PhysicalBlockAddress{Device: 3, LBA: lba}, parity[1])

	dstDevices := []entry.DeviceHandle{1}
	recoverFn := rebuild.RecoverFunc(c.BindRecoverFunc(chunkSize, []int{0, 2, 3}, []int{1}))

	srcPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "src", BlockSize: chunkSize * uint64(len(srcDevices)), Count: 2}, 0, numaalloc.NewHeapAllocator())
	require.NoError(t, err)
	dstPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "dst", BlockSize: chunkSize * uint64(len(dstDevices)), Count: 2}, 0, numaalloc.NewHeapAllocator())
	require.NoError(t, err)

	method := rebuild.NewNToMRebuild("test", srcDevices, dstDevices, recoverFn, srcPool, dstPool, chunkSize, disp)

	var gotResult int
	var wg sync.WaitGroup
	wg.Add(1)
	method.Recover(0, stripe, pSize, func(result int) {
		gotResult = result
		wg.Done()
	})
	wg.Wait()

	assert.Equal(t, rebuild.ResultSuccess, gotResult)
	assert.Equal(t, rebuild.StateDone, method.State())
	assert.Equal(t, data1, disp.get(entry.PhysicalBlockAddress{Device: 1, LBA: lba}))
}

func TestNToMRebuild_ReadErrorFailsOverToBackup(t *testing.T) {
	const chunkSize = 4
	c, err := codec.NewCodec(2, 2)
	require.NoError(t, err)

	data0 := []byte("1111")
	data1 := []byte("2222")
	parity := [][]byte{make([]byte, chunkSize), make([]byte, chunkSize)}
	require.NoError(t, c.Encode([][]byte{data0, data1}, parity))

	disp := newFakeDispatcher()
	pSize := rebuild.PartitionPhysicalSize{StartLba: 0, BlksPerChunk: 1}
	lba := uint64(0)

	primarySrc := []entry.DeviceHandle{0, 2, 3}
	disp.failDev[0] = true // primary's first source device is down
	disp.put(entry.PhysicalBlockAddress{Device: 2, LBA: lba}, parity[0])
	disp.put(entry.PhysicalBlockAddress{Device: 3, LBA: lba}, parity[1])

	backupSrc := []entry.DeviceHandle{1, 2, 3}
	disp.put(entry.PhysicalBlockAddress{Device: 1, LBA: lba}, data1)

	dstDevices := []entry.DeviceHandle{0}
	recoverFn := rebuild.RecoverFunc(c.BindRecoverFunc(chunkSize, []int{1, 2, 3}, []int{0}))

	alloc := numaalloc.NewHeapAllocator()
	primarySrcPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "psrc", BlockSize: chunkSize * uint64(len(primarySrc)), Count: 2}, 0, alloc)
	require.NoError(t, err)
	backupSrcPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "bsrc", BlockSize: chunkSize * uint64(len(backupSrc)), Count: 2}, 0, alloc)
	require.NoError(t, err)
	dstPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "dst", BlockSize: chunkSize * uint64(len(dstDevices)), Count: 2}, 0, alloc)
	require.NoError(t, err)

	// Primary has no recoverFunc bound that matches its own (broken)
	// source set; it only ever reaches the read stage before failing
	// over, so its recoverFunc is never invoked.
	primary := rebuild.NewNToMRebuild("primary", primarySrc, dstDevices, recoverFn, primarySrcPool, dstPool, chunkSize, disp)
	backup := rebuild.NewNToMRebuild("primary_backup", backupSrc, dstDevices, recoverFn, backupSrcPool, dstPool, chunkSize, disp)
	primary.SetBackupMethod(backup)

	var gotResult int
	var wg sync.WaitGroup
	wg.Add(1)
	primary.Recover(0, geometry.StripeId(0), pSize, func(result int) {
		gotResult = result
		wg.Done()
	})
	wg.Wait()

	assert.Equal(t, rebuild.ResultSuccess, gotResult)
	assert.True(t, primary.IsFailOver())
	assert.Equal(t, data0, disp.get(entry.PhysicalBlockAddress{Device: 0, LBA: lba}))
}

func TestNToMRebuild_ReadErrorNoBackupPropagatesError(t *testing.T) {
	const chunkSize = 4
	disp := newFakeDispatcher()
	disp.failDev[0] = true

	src := []entry.DeviceHandle{0, 1}
	dst := []entry.DeviceHandle{2}
	recoverFn := rebuild.RecoverFunc(func(dst, src []byte, dstSize uint64) error { return nil })

	alloc := numaalloc.NewHeapAllocator()
	srcPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "src", BlockSize: chunkSize * 2, Count: 2}, 0, alloc)
	require.NoError(t, err)
	dstPool, err := bufferpool.NewPool(bufferpool.BufferInfo{Owner: "dst", BlockSize: chunkSize, Count: 2}, 0, alloc)
	require.NoError(t, err)

	method := rebuild.NewNToMRebuild("nobackup", src, dst, recoverFn, srcPool, dstPool, chunkSize, disp)

	var gotResult int
	var wg sync.WaitGroup
	wg.Add(1)
	method.Recover(0, geometry.StripeId(0), rebuild.PartitionPhysicalSize{BlksPerChunk: 1}, func(result int) {
		gotResult = result
		wg.Done()
	})
	wg.Wait()

	assert.Equal(t, rebuild.ResultReadFailed, gotResult)
}
