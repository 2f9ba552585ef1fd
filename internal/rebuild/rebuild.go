// Package rebuild implements the N-to-M rebuild engine: given the
// surviving source devices of a stripe and the destination devices to
// repopulate, it reads the survivors, invokes a bound recover
// function, and writes the reconstructed chunks back out, reporting
// completion through a caller-supplied callback. It never retries and
// never blocks; every suspension point hands control to an
// iodispatch.Dispatcher and resumes on whatever goroutine completes
// the last split.
package rebuild

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/ft-raid-core/internal/bufferpool"
	"github.com/Anthya1104/ft-raid-core/internal/config"
	"github.com/Anthya1104/ft-raid-core/internal/entry"
	"github.com/Anthya1104/ft-raid-core/internal/geometry"
	"github.com/Anthya1104/ft-raid-core/internal/iodispatch"
)

// State is the rebuild engine's per-call state machine position.
type State int

const (
	StateIdle State = iota
	StateReadIssued
	StateReadDone
	StateRecover
	StateRecoverDone
	StateWriteIssued
	StateWriteDone
	StateDone
	StateFailover
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReadIssued:
		return "READ_ISSUED"
	case StateReadDone:
		return "READ_DONE"
	case StateRecover:
		return "RECOVER"
	case StateRecoverDone:
		return "RECOVER_DONE"
	case StateWriteIssued:
		return "WRITE_ISSUED"
	case StateWriteDone:
		return "WRITE_DONE"
	case StateDone:
		return "DONE"
	case StateFailover:
		return "FAILOVER"
	default:
		return "UNKNOWN"
	}
}

// Result codes are opaque to this layer beyond the 0 == success
// convention; a central event-id enumeration would assign these
// externally-stable numbers in a full deployment.
const (
	ResultSuccess           = 0
	ResultReadBufferEmpty   = 1
	ResultReadFailed        = 2
	ResultRecoverFailed     = 3
	ResultWriteBufferEmpty  = 4
	ResultWriteFailed       = 5
	ResultNoBackupAvailable = 6
)

// RecoverFunc reconstructs dstSize bytes into dst from the
// concatenated survivor bytes in src. See codec.BindRecoverFunc for
// the canonical constructor.
type RecoverFunc func(dst, src []byte, dstSize uint64) error

// DoneCallback is invoked exactly once per Recover call, with 0 on
// success and an opaque non-zero result code otherwise.
type DoneCallback func(result int)

// PartitionPhysicalSize carries the per-partition constants needed to
// compute a device LBA from a stripe id.
type PartitionPhysicalSize struct {
	StartLba     uint64
	BlksPerChunk uint64
}

// NToMRebuild recovers one stripe by reading len(src) surviving
// chunks, reconstructing len(dst) chunks through recoverFunc, and
// writing them to dst devices. One instance is reused across many
// Recover calls; state only exists for the duration of a single call.
type NToMRebuild struct {
	owner       string
	src         []entry.DeviceHandle
	dst         []entry.DeviceHandle
	recoverFunc RecoverFunc
	srcBuffer   *bufferpool.Pool
	dstBuffer   *bufferpool.Pool
	unitSize    uint64 // bytes per per-device split
	dispatcher  iodispatch.Dispatcher

	mu           sync.Mutex
	state        State
	backupMethod *NToMRebuild
	isFailOver   bool
}

// NewNToMRebuild constructs a rebuild method for one src/dst device
// set. srcBuffer and dstBuffer must be sized for len(src)*unitSize and
// len(dst)*unitSize bytes respectively.
func NewNToMRebuild(owner string, src, dst []entry.DeviceHandle, recoverFunc RecoverFunc,
	srcBuffer, dstBuffer *bufferpool.Pool, unitSize uint64, dispatcher iodispatch.Dispatcher) *NToMRebuild {
	return &NToMRebuild{
		owner:       owner,
		src:         src,
		dst:         dst,
		recoverFunc: recoverFunc,
		srcBuffer:   srcBuffer,
		dstBuffer:   dstBuffer,
		unitSize:    unitSize,
		dispatcher:  dispatcher,
		state:       StateIdle,
	}
}

// SetBackupMethod attaches a backup rebuild method to fail over to on
// a read error. nil clears it.
func (r *NToMRebuild) SetBackupMethod(backup *NToMRebuild) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backupMethod = backup
}

// SetFailOver latches fail-over mode; a no-op if no backup is attached.
func (r *NToMRebuild) SetFailOver() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backupMethod != nil {
		r.isFailOver = true
	}
}

// IsFailOver reports whether this instance has latched into fail-over.
func (r *NToMRebuild) IsFailOver() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isFailOver
}

func (r *NToMRebuild) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// State reports the current state-machine position.
func (r *NToMRebuild) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Recover drives one stripe's read -> recover -> write pipeline to
// completion, invoking callback exactly once. If fail-over is
// latched, the call is delegated entirely to the backup method.
func (r *NToMRebuild) Recover(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback) {
	if r.IsFailOver() {
		r.backupMethod.Recover(arrayIdx, stripeId, pSize, callback)
		return
	}
	logrus.Debugf("rebuild: %s starting recover, array_idx:%d stripe_id:%d", r.owner, arrayIdx, stripeId)
	r.setState(StateReadIssued)
	r.read(arrayIdx, stripeId, pSize, callback)
}

func lbaFor(pSize PartitionPhysicalSize, stripeId geometry.StripeId) uint64 {
	return pSize.StartLba + uint64(stripeId)*pSize.BlksPerChunk*config.SectorsPerBlock
}

func (r *NToMRebuild) read(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback) {
	buf := r.srcBuffer.TryGet()
	if buf == nil {
		logrus.Warnf("rebuild: %s source buffer pool empty, owner:%s", r.owner, r.srcBuffer.Owner())
		r.readDone(arrayIdx, stripeId, pSize, callback, nil, ResultReadBufferEmpty)
		return
	}

	lba := lbaFor(pSize, stripeId)
	perDevice := uint64(len(buf)) / uint64(len(r.src))
	wg := iodispatch.NewWaitGroup(len(r.src), func(result int) {
		r.readDone(arrayIdx, stripeId, pSize, callback, buf, result)
	})
	for i, dev := range r.src {
		start := uint64(i) * perDevice
		unit := iodispatch.Unit{
			Dir:        iodispatch.DirectionRead,
			Addr:       entry.PhysicalBlockAddress{Device: dev, LBA: lba},
			Buffer:     buf[start : start+perDevice],
			EventType:  iodispatch.EventTypeUserdataRebuild,
			Completion: wg.Complete,
		}
		if err := r.dispatcher.Submit(unit); err != nil {
			wg.Complete(ResultReadFailed)
		}
	}
}

func (r *NToMRebuild) readDone(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback, src []byte, result int) {
	r.setState(StateReadDone)
	if result != ResultSuccess {
		logrus.Warnf("rebuild: %s read error, array_idx:%d stripe_id:%d result:%d", r.owner, arrayIdx, stripeId, result)
		if src != nil {
			r.srcBuffer.Return(src)
		}
		r.failOverOrFail(arrayIdx, stripeId, pSize, callback, result)
		return
	}
	r.recover(arrayIdx, stripeId, pSize, callback, src)
}

func (r *NToMRebuild) failOverOrFail(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback, result int) {
	r.mu.Lock()
	backup := r.backupMethod
	wasFailOver := r.isFailOver
	if backup != nil {
		r.isFailOver = true
	}
	r.mu.Unlock()

	if backup == nil {
		r.setState(StateDone)
		callback(result)
		return
	}
	if !wasFailOver {
		logrus.Infof("rebuild: %s engaging backup method %s_backup", r.owner, r.owner)
	}
	r.setState(StateFailover)
	backup.Recover(arrayIdx, stripeId, pSize, callback)
}

func (r *NToMRebuild) recover(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback, src []byte) {
	r.setState(StateRecover)
	dst := r.dstBuffer.TryGet()
	if dst == nil {
		logrus.Warnf("rebuild: %s destination buffer pool empty, owner:%s", r.owner, r.dstBuffer.Owner())
		r.srcBuffer.Return(src)
		r.setState(StateDone)
		callback(ResultWriteBufferEmpty)
		return
	}

	if err := r.recoverFunc(dst, src, uint64(len(dst))); err != nil {
		logrus.Errorf("rebuild: %s recover error, array_idx:%d stripe_id:%d err:%v", r.owner, arrayIdx, stripeId, err)
		r.srcBuffer.Return(src)
		r.dstBuffer.Return(dst)
		r.setState(StateDone)
		callback(ResultRecoverFailed)
		return
	}
	r.srcBuffer.Return(src)
	r.recoverDone(arrayIdx, stripeId, pSize, callback, dst, ResultSuccess)
}

func (r *NToMRebuild) recoverDone(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback, dst []byte, result int) {
	r.setState(StateRecoverDone)
	if result != ResultSuccess {
		r.dstBuffer.Return(dst)
		r.setState(StateDone)
		callback(result)
		return
	}
	r.write(arrayIdx, stripeId, pSize, callback, dst)
}

func (r *NToMRebuild) write(arrayIdx int, stripeId geometry.StripeId, pSize PartitionPhysicalSize, callback DoneCallback, dst []byte) {
	r.setState(StateWriteIssued)
	lba := lbaFor(pSize, stripeId)
	perDevice := uint64(len(dst)) / uint64(len(r.dst))
	wg := iodispatch.NewWaitGroup(len(r.dst), func(result int) {
		r.writeDone(arrayIdx, stripeId, callback, dst, result)
	})
	for i, dev := range r.dst {
		start := uint64(i) * perDevice
		unit := iodispatch.Unit{
			Dir:        iodispatch.DirectionWrite,
			Addr:       entry.PhysicalBlockAddress{Device: dev, LBA: lba},
			Buffer:     dst[start : start+perDevice],
			EventType:  iodispatch.EventTypeUserdataRebuild,
			Completion: wg.Complete,
		}
		if err := r.dispatcher.Submit(unit); err != nil {
			wg.Complete(ResultWriteFailed)
		}
	}
}

func (r *NToMRebuild) writeDone(arrayIdx int, stripeId geometry.StripeId, callback DoneCallback, dst []byte, result int) {
	r.setState(StateWriteDone)
	r.dstBuffer.Return(dst)
	if result != ResultSuccess {
		logrus.Warnf("rebuild: %s write error, array_idx:%d stripe_id:%d result:%d", r.owner, arrayIdx, stripeId, result)
	}
	r.setState(StateDone)
	callback(result)
}
