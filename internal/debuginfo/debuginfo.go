// Package debuginfo implements a generic bounded-ring snapshot sampler,
// one per named subsystem, mirroring poseidonos's DebugInfoMaker<T>
// template: two bounded rings ("history" and "history-error") plus an
// optional periodic goroutine that samples a user-supplied snapshot
// function.
package debuginfo

import (
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Okay is the verdict a snapshot's IsOkay callback returns. Higher
// values are worse; SummaryOkay tracks the monotonic maximum seen.
type Okay int

const (
	Pass Okay = iota
	Warn
	Fail
)

func (o Okay) String() string {
	switch o {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// DefaultTimerUsec is used when Register is called with timerUsec==0.
const DefaultTimerUsec = 1_000_000

// ring is a fixed-capacity FIFO; pushing past capacity drops the
// oldest entry.
type ring[T any] struct {
	mu       sync.Mutex
	buf      []T
	capacity int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, 0, capacity), capacity: capacity}
}

func (r *ring[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) >= r.capacity {
		r.buf = r.buf[1:]
	}
	r.buf = append(r.buf, v)
}

func (r *ring[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.buf))
	copy(out, r.buf)
	return out
}

func (r *ring[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// MakeFunc produces a fresh snapshot of T. IsOkayFunc grades it; the
// zero value of IsOkayFunc always returns Pass, matching the
// template's default.
type MakeFunc[T any] func() T
type IsOkayFunc[T any] func(T) Okay

// Maker is a generic debug-info producer for snapshot type T, one per
// registered name.
type Maker[T any] struct {
	name    string
	make    MakeFunc[T]
	isOkay  IsOkayFunc[T]
	history *ring[T]
	errHist *ring[T]
	enabled bool
	async   bool
	timer   time.Duration

	mu          sync.Mutex
	summaryOkay Okay
	stopCh      chan struct{}
	stopped     chan struct{}
}

// Register builds and, if async, starts a Maker[T] sampling makeFn
// every timerUsec microseconds (DefaultTimerUsec if 0). isOkayFn may
// be nil, in which case every sample is graded Pass.
func Register[T any](name string, capacity int, async bool, timerUsec uint64, enabled bool, makeFn MakeFunc[T], isOkayFn IsOkayFunc[T]) *Maker[T] {
	if timerUsec == 0 {
		timerUsec = DefaultTimerUsec
	}
	if isOkayFn == nil {
		isOkayFn = func(T) Okay { return Pass }
	}

	m := &Maker[T]{
		name:    name,
		make:    makeFn,
		isOkay:  isOkayFn,
		history: newRing[T](capacity),
		errHist: newRing[T](capacity),
		enabled: enabled,
		async:   async,
		timer:   time.Duration(timerUsec) * time.Microsecond,
	}

	if async {
		m.stopCh = make(chan struct{})
		m.stopped = make(chan struct{})
		go m.loop()
	}
	return m
}

func (m *Maker[T]) loop() {
	defer close(m.stopped)

	// No CPU affinity is set; Go's scheduler already multiplexes
	// goroutines across the general-usage CPU set, so a dedicated OS
	// thread is only locked to keep sampling latency independent of
	// whatever else is running on this goroutine's prior thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(m.timer)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample captures one snapshot, grades it, and appends it to history
// (and to history-error when not Pass). Safe to call directly even
// when the Maker was registered without async sampling.
func (m *Maker[T]) Sample() {
	if !m.enabled {
		return
	}
	snap := m.make()
	okay := m.isOkay(snap)

	m.mu.Lock()
	if int(okay) > int(m.summaryOkay) {
		m.summaryOkay = okay
	}
	m.mu.Unlock()

	if okay != Pass {
		m.errHist.push(snap)
		logrus.Warnf("debuginfo: %s sample graded %s", m.name, okay)
	}
	m.history.push(snap)
}

// SummaryOkay reports the monotonic maximum (worst) grade observed.
func (m *Maker[T]) SummaryOkay() Okay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryOkay
}

// History returns a copy of the current history ring, oldest first.
func (m *Maker[T]) History() []T { return m.history.snapshot() }

// ErrorHistory returns a copy of the current error-only ring, oldest first.
func (m *Maker[T]) ErrorHistory() []T { return m.errHist.snapshot() }

// Len reports the current history ring size (for test assertions).
func (m *Maker[T]) Len() int { return m.history.len() }

// Close stops the sampler goroutine, if one was started, and waits
// for it to exit.
func (m *Maker[T]) Close() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.stopped
}
