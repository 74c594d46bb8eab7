package handle

import (
	"errors"
	"testing"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/ring"
)

// fakeOwner stands in for *ring.Owner so Push's retry/backpressure logic
// can be exercised without a real kernel ring. pool models a
// submission queue that holds at most len(pool) unsubmitted entries
// before GetSQELocked starts returning nil, the same shape
// giouring.Ring.GetSQE has when the SQ is full.
type fakeOwner struct {
	pool        []giouring.SubmissionQueueEntry
	next        int
	submitCalls int
	drainCalls  int
	submitErr   error
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

func (f *fakeOwner) SubmitLocked() error {
	f.submitCalls++
	if f.submitErr != nil {
		err := f.submitErr
		f.submitErr = nil
		return err
	}
	// A real Submit() hands the queue back to the kernel, freeing slots
	// for further GetSQE calls.
	f.next = 0
	return nil
}

func (f *fakeOwner) DrainCompletionsLocked() {
	f.drainCalls++
}

func newTestHandle(pool int) (*Handle, *fakeOwner) {
	fo := &fakeOwner{pool: make([]giouring.SubmissionQueueEntry, pool)}
	return &Handle{owner: fo}, fo
}

func TestPushTagsEntryWithTicketIdentity(t *testing.T) {
	h, _ := newTestHandle(4)

	var gotTag uint64
	tr, err := h.Push(func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		gotTag = tag
		sqe.UserData = tag
	})
	if err != nil {
		t.Fatalf("Push returned error: %v", err)
	}
	if tr.Tag() != gotTag {
		t.Fatalf("build saw tag %d, ticket.Tag() = %d", gotTag, tr.Tag())
	}
}

func TestPushSubmitsAndRetriesWhenQueueFull(t *testing.T) {
	// Only one slot: the first Push consumes it, the second must trigger
	// a submit (which this fake "frees" the queue on) before succeeding.
	h, fo := newTestHandle(1)

	if _, err := h.Push(func(sqe *giouring.SubmissionQueueEntry, tag uint64) {}); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if _, err := h.Push(func(sqe *giouring.SubmissionQueueEntry, tag uint64) {}); err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if fo.submitCalls == 0 {
		t.Fatal("second Push never submitted to free the full queue")
	}
}

func TestPushReturnsBusyExhaustedAfterRetryBudget(t *testing.T) {
	// No slots at all, and Submit never frees any: every retry sees a nil
	// SQE, so Push must give up rather than loop forever.
	h := &Handle{owner: &neverFreesOwner{}}

	_, err := h.Push(func(sqe *giouring.SubmissionQueueEntry, tag uint64) {})
	if !errors.Is(err, ring.ErrBusyExhausted) {
		t.Fatalf("Push error = %v, want ring.ErrBusyExhausted", err)
	}
}

type neverFreesOwner struct{ submits int }

func (o *neverFreesOwner) Lock()   {}
func (o *neverFreesOwner) Unlock() {}
func (o *neverFreesOwner) GetSQELocked() *giouring.SubmissionQueueEntry {
	return nil
}
func (o *neverFreesOwner) SubmitLocked() error { o.submits++; return nil }
func (o *neverFreesOwner) DrainCompletionsLocked() {}

func TestWeakHandleReportsDisconnectedWhenDead(t *testing.T) {
	h, _ := newTestHandle(4)
	weak := h.Weak(func() bool { return true })

	_, err := weak.Push(func(sqe *giouring.SubmissionQueueEntry, tag uint64) {})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Push error = %v, want ErrDisconnected", err)
	}

	if err := weak.PushRaw(func(sqe *giouring.SubmissionQueueEntry) {}); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("PushRaw error = %v, want ErrDisconnected", err)
	}
}

func TestWeakHandlePushesWhileAlive(t *testing.T) {
	h, _ := newTestHandle(4)
	weak := h.Weak(func() bool { return false })

	if _, err := weak.Push(func(sqe *giouring.SubmissionQueueEntry, tag uint64) {}); err != nil {
		t.Fatalf("Push on a live weak handle failed: %v", err)
	}
}

func TestPushRawSkipsTicketAllocation(t *testing.T) {
	h, _ := newTestHandle(4)

	var stamped uint64
	err := h.PushRaw(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.UserData = ring.TagEmpty
		stamped = sqe.UserData
	})
	if err != nil {
		t.Fatalf("PushRaw returned error: %v", err)
	}
	if stamped != ring.TagEmpty {
		t.Fatalf("stamped tag = %d, want TagEmpty", stamped)
	}
}
