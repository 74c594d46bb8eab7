package action

import (
	"context"
	"testing"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/handle"
	"github.com/ehrlich-b/go-proactor/internal/ticket"
)

// fakeOwner is the narrowest stand-in for a ring owner that lets Action
// exercise the handle.Push path without a real kernel ring: a small pool
// of zero-value SQEs plus no-op submit/drain hooks.
type fakeOwner struct {
	pool [8]giouring.SubmissionQueueEntry
	next int
}

func (f *fakeOwner) Lock()   {}
func (f *fakeOwner) Unlock() {}
func (f *fakeOwner) GetSQELocked() *giouring.SubmissionQueueEntry {
	if f.next >= len(f.pool) {
		return nil
	}
	sqe := &f.pool[f.next]
	f.next++
	return sqe
}
func (f *fakeOwner) SubmitLocked() error     { f.next = 0; return nil }
func (f *fakeOwner) DrainCompletionsLocked() {}

func newTestHandle() *handle.Handle {
	// handle.New requires a concrete *ring.Owner; construct the Handle
	// directly with a fake instead, mirroring the handle package's own
	// white-box tests.
	return handle.NewForTest(&fakeOwner{})
}

func TestActionWaitReturnsHoldAndCQEOnSuccess(t *testing.T) {
	h := newTestHandle()

	a, err := New(h, []byte("hello"), func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.UserData = tag
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	// Simulate the proactor's completion drain: recover the ticket from
	// the tag Action stamped into the SQE and deliver a CQE through it,
	// exactly as Owner.dispatch does for a non-reserved tag.
	tr := ticket.FromTag(a.Tag())
	go tr.Send(ticket.CQE{Tag: a.Tag(), Res: 5})

	res, err := a.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if string(res.Hold) != "hello" {
		t.Fatalf("Hold = %q, want %q", res.Hold, "hello")
	}
	if res.CQE.Res != 5 {
		t.Fatalf("CQE.Res = %d, want 5", res.CQE.Res)
	}
}

func TestActionCancelAndLeakDoesNotFreeHoldBeforeCompletion(t *testing.T) {
	h := newTestHandle()

	type buf struct{ data []byte }
	held := &buf{data: []byte("still owned by the kernel")}

	a, err := New(h, held, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.UserData = tag
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = a.Wait(ctx)
	if err == nil {
		t.Fatal("Wait returned nil error for a cancelled context")
	}

	// The real completion has not arrived yet: the ticket must not be
	// resolved, and held must still be the live value the cancel-and-leak
	// goroutine references (not freed synchronously by Wait).
	if a.ticket.IsResolved() {
		t.Fatal("ticket resolved before the real completion arrived")
	}
	if held.data == nil {
		t.Fatal("held value cleared before the real completion arrived")
	}

	// Now let the real completion arrive; the cancel-and-leak goroutine's
	// Recv should unblock without panicking.
	tr := ticket.FromTag(a.Tag())
	tr.Send(ticket.CQE{Tag: a.Tag(), Res: -int32(125) /* ECANCELED */})

	// Give the background goroutine a moment to observe it.
	time.Sleep(20 * time.Millisecond)
	if !a.ticket.IsResolved() {
		t.Fatal("ticket never resolved after the real completion was sent")
	}
}

func TestActionTagMatchesTicketIdentity(t *testing.T) {
	h := newTestHandle()
	a, err := New(h, struct{}{}, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.UserData = tag
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer ticket.FromTag(a.Tag()).Send(ticket.CQE{Tag: a.Tag()})

	if a.Tag() == 0 || a.Tag() == 1 {
		t.Fatalf("Tag() = %d, collides with a reserved sentinel", a.Tag())
	}
}
