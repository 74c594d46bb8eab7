// Package ring implements the proactor's ring owner: the single object
// holding the submission ring, the completion ring, and the wake signal
// for the lifetime of the event loop. One mutex guards the ring; the
// park step, the handle layer's push path, and shutdown all serialize
// through it.
package ring

import (
	"errors"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/logging"
	"github.com/ehrlich-b/go-proactor/internal/ticket"
	"github.com/ehrlich-b/go-proactor/internal/wake"
)

// Reserved tag values. See ticket.Tag for why every other value is a live
// ticket's address.
const (
	TagWake  uint64 = 0
	TagEmpty uint64 = 1
)

const (
	// DefaultQueueDepth is the submission/completion ring size used when a
	// caller doesn't specify one.
	DefaultQueueDepth uint32 = 256
	// DefaultBusyRetries bounds the retry loop on transient EBUSY from the
	// kernel during submit. io_uring's EBUSY is meant to be retried after draining
	// completions — but unbounded retry isn't acceptable for a library, so
	// this caps it.
	DefaultBusyRetries = 3
)

var (
	// ErrClosed is returned by Park and SubmitLocked (and so by a handle's
	// push) once Close has run.
	ErrClosed = errors.New("ring: closed")
	// ErrBusyExhausted is returned when the kernel kept returning EBUSY
	// past the configured retry bound.
	ErrBusyExhausted = errors.New("ring: submit busy-retry exhausted")
)

// Config sizes a ring owner.
type Config struct {
	// Entries is the submission/completion queue depth.
	Entries uint32
	// BusyRetries bounds retries on transient kernel EBUSY.
	BusyRetries int
}

// DefaultConfig returns the configuration used when a caller wants the
// library's defaults.
func DefaultConfig() Config {
	return Config{Entries: DefaultQueueDepth, BusyRetries: DefaultBusyRetries}
}

func (c Config) withDefaults() Config {
	if c.Entries == 0 {
		c.Entries = DefaultQueueDepth
	}
	if c.BusyRetries <= 0 {
		c.BusyRetries = DefaultBusyRetries
	}
	return c
}

// Owner is the ring owner: submission ring, completion ring, wake
// signal, and the scratch staging buffer for the wake-read, all guarded by
// a single mutex so the type is safe to reach from more than one
// goroutine even though the protocol assumes a single logical driver.
type Owner struct {
	mu       sync.Mutex
	ring     *giouring.Ring
	wake     *wake.Signal
	eventbuf [8]byte
	cfg      Config
	// parking reports a wake-read SQE in flight: armed, completion not
	// yet dispatched. Guards against re-arming every cycle.
	parking bool
	closed  bool
}

// New creates a ring owner with the given configuration.
func New(cfg Config) (*Owner, error) {
	cfg = cfg.withDefaults()

	r, err := giouring.CreateRing(cfg.Entries)
	if err != nil {
		return nil, err
	}

	w, err := wake.New()
	if err != nil {
		r.QueueExit()
		return nil, err
	}

	return &Owner{ring: r, wake: w, cfg: cfg}, nil
}

// WakeSignal returns the wake signal handles use to interrupt a parked
// proactor from another goroutine.
func (o *Owner) WakeSignal() *wake.Signal {
	return o.wake
}

// GetSQE returns a fresh submission queue entry, or nil if the queue is
// full. Callers (the handle layer) are expected to Submit and retry on
// nil, bounded.
func (o *Owner) GetSQE() *giouring.SubmissionQueueEntry {
	o.Lock()
	defer o.Unlock()
	return o.ring.GetSQE()
}

// Lock/Unlock expose the owner's mutex for operations (such as the
// handle's push retry loop) that must hold it across a GetSQE + Submit +
// drain sequence without another goroutine's operation interleaving.
//
// Lock wakes the proactor if the mutex is contended: Park blocks inside
// the kernel wait while holding the mutex, so a submitting task would
// otherwise sit on the lock until some unrelated completion arrived. The
// wake costs one spurious nowait cycle when the holder wasn't parked,
// which the park loop tolerates.
func (o *Owner) Lock() {
	if o.mu.TryLock() {
		return
	}
	o.wake.Wake()
	o.mu.Lock()
}

func (o *Owner) Unlock() { o.mu.Unlock() }

// GetSQELocked is GetSQE for a caller already holding the owner's lock.
// It returns nil once Close has run.
func (o *Owner) GetSQELocked() *giouring.SubmissionQueueEntry {
	if o.closed {
		return nil
	}
	return o.ring.GetSQE()
}

// SubmitLocked submits queued SQEs, retrying on transient EBUSY up to the
// configured bound and draining available completions between retries.
func (o *Owner) SubmitLocked() error {
	if o.closed {
		return ErrClosed
	}
	for attempt := 0; ; attempt++ {
		_, err := o.ring.Submit()
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EBUSY) {
			return err
		}
		o.drainLocked()
		if attempt >= o.cfg.BusyRetries {
			return ErrBusyExhausted
		}
	}
}

// DrainCompletions dispatches every completion currently available
// without blocking.
func (o *Owner) DrainCompletions() {
	o.Lock()
	defer o.Unlock()
	o.drainLocked()
}

// DrainCompletionsLocked is DrainCompletions for a caller already holding
// the owner's lock, such as the handle layer's backpressure retry path.
func (o *Owner) DrainCompletionsLocked() {
	o.drainLocked()
}

func (o *Owner) drainLocked() {
	const batch = 64
	var cqes [batch]*giouring.CompletionQueueEvent
	for {
		n := o.ring.PeekBatchCQE(cqes[:])
		for _, cqe := range cqes[:n] {
			o.dispatch(cqe)
		}
		if n > 0 {
			o.ring.CQAdvance(n)
		}
		if n < uint32(len(cqes)) {
			return
		}
	}
}

func (o *Owner) dispatch(cqe *giouring.CompletionQueueEvent) {
	switch cqe.UserData {
	case TagWake:
		o.wake.Unpark()
		o.parking = false
	case TagEmpty:
		// fire-and-forget submission (AsyncCancel, ...): nothing to do.
	default:
		t := ticket.FromTag(cqe.UserData)
		t.Send(ticket.CQE{Tag: cqe.UserData, Res: cqe.Res, Flags: cqe.Flags})
	}
}

// Park performs one step of the proactor's drive loop: drain whatever
// completions are already available, decide whether this cycle needs to
// block at all, arm the wake-read if one isn't already in flight, submit,
// and drain again. timeout == nil means block until at least one
// completion arrives; a zero duration means never block.
func (o *Owner) Park(timeout *time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	cqWasNonEmpty := o.ring.CQReady() != 0
	o.drainLocked()

	ready, _ := o.wake.Load()
	nowait := ready || cqWasNonEmpty || (timeout != nil && *timeout == 0)

	// Arm the wake-read only if the previous one's completion has been
	// observed; a still-in-flight read covers this cycle too.
	if !o.parking {
		sqe := o.ring.GetSQE()
		if sqe == nil {
			if err := o.SubmitLocked(); err != nil {
				return err
			}
			sqe = o.ring.GetSQE()
		}
		if sqe != nil {
			sqe.PrepareRead(o.wake.Fd(), uintptr(unsafe.Pointer(&o.eventbuf[0])), uint32(len(o.eventbuf)), 0)
			sqe.UserData = TagWake
			o.parking = true
		} else {
			// Couldn't arm: blocking now would sleep with no wakeup
			// path, so fall through without waiting.
			nowait = true
		}
	}
	if o.parking {
		o.wake.MarkParking()
		// A Wake between the Load above and MarkParking saw no parking
		// bit and skipped the eventfd write; recheck so that wake isn't
		// slept through.
		if ready, _ := o.wake.Load(); ready {
			nowait = true
		}
	}

	var err error
	for attempt := 0; ; attempt++ {
		if nowait {
			_, err = o.ring.Submit()
		} else if timeout != nil {
			if _, err = o.ring.Submit(); err == nil {
				ts := syscall.NsecToTimespec(timeout.Nanoseconds())
				_, err = o.ring.WaitCQEs(1, &ts, nil)
			}
		} else {
			_, err = o.ring.SubmitAndWait(1)
		}
		if err == nil {
			break
		}
		if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETIME) {
			o.drainLocked()
			if errors.Is(err, syscall.ETIME) {
				break
			}
			if attempt >= o.cfg.BusyRetries {
				return ErrBusyExhausted
			}
			continue
		}
		return err
	}

	o.drainLocked()
	// o.parking stays true unless the wake-read's CQE was dispatched:
	// the SQE is still in flight and must not be re-armed next cycle.
	o.wake.Reset()

	return nil
}

// Close implements the shutdown invariant: if a wake-read is still in
// flight, submit a cancel against TagWake and wait until the wake-read's
// own completion appears before freeing ring resources, so the
// kernel never writes into memory freed out from under it.
func (o *Owner) Close() error {
	o.Lock()
	defer o.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if o.parking {
		if err := o.cancelWakeAndWaitLocked(); err != nil {
			logging.Default().Warn("ring shutdown cancel failed", "error", err)
		}
	}

	if err := o.wake.Close(); err != nil {
		logging.Default().Warn("wake signal close failed", "error", err)
	}
	o.ring.QueueExit()
	return nil
}

func (o *Owner) cancelWakeAndWaitLocked() error {
	const batch = 64
	var cqes [batch]*giouring.CompletionQueueEvent

	drainForWake := func() bool {
		for {
			n := o.ring.PeekBatchCQE(cqes[:])
			found := false
			for _, cqe := range cqes[:n] {
				if cqe.UserData == TagWake {
					found = true
				} else {
					o.dispatch(cqe)
				}
			}
			if n > 0 {
				o.ring.CQAdvance(n)
			}
			if found {
				return true
			}
			if n < uint32(len(cqes)) {
				return false
			}
		}
	}

	if drainForWake() {
		return nil
	}

	sqe := o.ring.GetSQE()
	for sqe == nil {
		if _, err := o.ring.Submit(); err != nil && !errors.Is(err, syscall.EBUSY) {
			return err
		}
		if drainForWake() {
			return nil
		}
		sqe = o.ring.GetSQE()
	}
	sqe.PrepareCancel64(TagWake, 0)
	sqe.UserData = TagEmpty

	for {
		_, err := o.ring.SubmitAndWait(1)
		if err != nil && !errors.Is(err, syscall.EBUSY) {
			return err
		}
		if drainForWake() {
			return nil
		}
	}
}
