// Package ticket implements the one-shot rendezvous between a submitted
// kernel operation and the task awaiting its completion: a Ticket's
// address, pinned for the lifetime of the round trip, doubles as the
// opaque 64-bit tag carried in the submission and completion entries.
package ticket

import (
	"context"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// CQE is the decoded payload of a completion entry: the tag that routed it
// here, the signed kernel result, and any completion flags.
type CQE struct {
	Tag   uint64
	Res   int32
	Flags uint32
}

// Ticket is a single-producer single-consumer cell carrying exactly one
// CQE. The proactor is the sender; the task that pushed the corresponding
// submission entry is the receiver.
//
// A Ticket is heap-allocated and pinned via runtime.Pinner for its entire
// outstanding lifetime so that Tag, a raw address round-tripped through
// the kernel as a uint64, stays valid even if a future Go runtime adopts a
// moving garbage collector.
type Ticket struct {
	pinner   runtime.Pinner
	ch       chan CQE
	resolved atomic.Bool
}

// New allocates and pins a Ticket, ready to be tagged onto a submission
// entry via Tag.
func New() *Ticket {
	t := &Ticket{ch: make(chan CQE, 1)}
	t.pinner.Pin(t)
	return t
}

// Tag returns the Ticket's address as the 64-bit value to carry as the
// submission entry's user-data word. Never 0 (TagWake) or 1 (TagEmpty):
// those are reserved sentinels the ring owner never hands out as a real
// heap address.
func (t *Ticket) Tag() uint64 {
	return uint64(uintptr(unsafe.Pointer(t)))
}

// FromTag recovers the Ticket a completion entry's tag refers to. The
// caller (the ring owner's completion drain) must hold the invariant that
// a tag is recovered at most once per submission: constructing a Ticket
// reference from a stale or already-delivered tag is undefined behavior,
// exactly as it would be for the raw pointer it mirrors.
func FromTag(tag uint64) *Ticket {
	return (*Ticket)(unsafe.Pointer(uintptr(tag)))
}

// Send delivers the completion and unpins the Ticket. Called by the
// proactor's completion drain exactly once per Ticket; the invariant that
// every live tag is resolved exactly once is enforced by the ring owner,
// not by Ticket itself.
func (t *Ticket) Send(cqe CQE) {
	t.ch <- cqe
	t.resolved.Store(true)
	t.pinner.Unpin()
}

// Discard unpins a Ticket whose submission never made it into the ring.
// Must not be called once the Ticket's tag has been stamped onto a
// submitted entry; from that point only Send releases the pin.
func (t *Ticket) Discard() {
	t.pinner.Unpin()
}

// Wait blocks until the completion arrives or ctx is cancelled. On
// cancellation the Ticket is NOT resolved and remains pinned: the caller
// is responsible for submitting a cancel against this Ticket's tag and
// keeping a reference alive (see the action package's cancel-and-leak
// protocol) until Send is eventually called.
func (t *Ticket) Wait(ctx context.Context) (CQE, error) {
	select {
	case cqe := <-t.ch:
		return cqe, nil
	default:
	}
	select {
	case cqe := <-t.ch:
		return cqe, nil
	case <-ctx.Done():
		return CQE{}, ctx.Err()
	}
}

// Recv blocks uninterruptibly for the completion. Used by the
// cancel-and-leak background waiter, which has no context of its own to
// honor — its only job is to keep the Ticket reachable until the kernel's
// real completion arrives.
func (t *Ticket) Recv() CQE {
	return <-t.ch
}

// IsResolved reports whether Send has already been called. Cancel paths
// use this to avoid submitting AsyncCancel against a Ticket whose
// completion has already been observed.
func (t *Ticket) IsResolved() bool {
	return t.resolved.Load()
}
