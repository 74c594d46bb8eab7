// Package handle implements the submission-surface layer: the object
// user-facing operation wrappers push submission entries through. A
// narrow interface over the ring owner keeps the layer testable against
// a fake; a strong/weak pair controls whether holding a handle keeps the
// proactor alive.
package handle

import (
	"errors"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/ring"
	"github.com/ehrlich-b/go-proactor/internal/ticket"
)

// ErrDisconnected is returned by Push when a weak handle's proactor has
// already been torn down.
var ErrDisconnected = errors.New("handle: proactor is gone")

// owner is the subset of *ring.Owner the handle layer depends on, kept
// narrow so Handle can be exercised in tests against a fake.
type owner interface {
	Lock()
	Unlock()
	GetSQELocked() *giouring.SubmissionQueueEntry
	SubmitLocked() error
	DrainCompletionsLocked()
}

// maxPushRetries bounds the push retry loop: on a
// full submission queue, submit what's already queued and retry.
const maxPushRetries = 8

// Handle is the submission surface bound to one ring owner. Weak handles
// (produced by Weak) share the same owner but consult a liveness callback
// and report ErrDisconnected once it says the owner is gone; strong
// handles perform no such check.
type Handle struct {
	owner owner
	weak  bool
	dead  func() bool
}

// New wraps a ring owner in a strong handle.
func New(o *ring.Owner) *Handle {
	return &Handle{owner: o}
}

// NewForTest builds a Handle over any value satisfying the internal owner
// contract (Lock/Unlock/GetSQELocked/SubmitLocked/DrainCompletionsLocked),
// letting other packages' tests (notably internal/action) exercise Push
// against a fake ring without a real kernel.
func NewForTest(o interface {
	Lock()
	Unlock()
	GetSQELocked() *giouring.SubmissionQueueEntry
	SubmitLocked() error
	DrainCompletionsLocked()
}) *Handle {
	return &Handle{owner: o}
}

// Weak returns a handle that does not keep the proactor alive. dead
// reports whether the backing proactor has shut down; Push against a dead
// weak handle returns ErrDisconnected instead of touching the ring.
func (h *Handle) Weak(dead func() bool) *Handle {
	return &Handle{owner: h.owner, weak: true, dead: dead}
}

// Push allocates a ticket, lets build tag and fill in the submission
// entry, and enqueues it. build MUST NOT retain the *SubmissionQueueEntry
// past its call. The caller asserts every memory region the entry
// references outlives the ticket's resolution — Push itself has no way
// to enforce that; it is the contract the action protocol exists to
// uphold.
func (h *Handle) Push(build func(sqe *giouring.SubmissionQueueEntry, tag uint64)) (*ticket.Ticket, error) {
	if h.weak && h.dead != nil && h.dead() {
		return nil, ErrDisconnected
	}

	t := ticket.New()
	tag := t.Tag()

	h.owner.Lock()
	defer h.owner.Unlock()

	sqe, err := h.getSQELocked()
	if err != nil {
		t.Discard()
		return nil, err
	}
	build(sqe, tag)

	return t, nil
}

// PushRaw submits a fire-and-forget entry with no backing ticket: the
// caller stamps sqe.UserData itself (normally TagEmpty) and is expected
// never to look for a completion, matching the ring's "EMPTY ... discard"
// rule. Used for AsyncCancel submissions, which carry no payload of their
// own and would otherwise leak a ticket that can never be resolved.
func (h *Handle) PushRaw(build func(sqe *giouring.SubmissionQueueEntry)) error {
	if h.weak && h.dead != nil && h.dead() {
		return ErrDisconnected
	}

	h.owner.Lock()
	defer h.owner.Unlock()

	sqe, err := h.getSQELocked()
	if err != nil {
		return err
	}
	build(sqe)
	return nil
}

// getSQELocked returns a fresh SQE, submitting and retrying (bounded) if
// the queue is full. Caller must hold h.owner's lock.
func (h *Handle) getSQELocked() (*giouring.SubmissionQueueEntry, error) {
	sqe := h.owner.GetSQELocked()
	for attempt := 0; sqe == nil; attempt++ {
		if attempt >= maxPushRetries {
			return nil, ring.ErrBusyExhausted
		}
		if err := h.owner.SubmitLocked(); err != nil {
			if errors.Is(err, ring.ErrBusyExhausted) {
				h.owner.DrainCompletionsLocked()
			} else {
				return nil, err
			}
		}
		sqe = h.owner.GetSQELocked()
	}
	return sqe, nil
}
