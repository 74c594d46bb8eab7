package ops

import (
	"context"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Sleep suspends the calling task for d by racing a TIMEOUT submission.
// The timespec is a boxed out-parameter: the kernel reads it for the
// duration of the wait, so it must live on the heap at a stable address.
func Sleep(ctx context.Context, h *handle.Handle, d time.Duration) error {
	ts := syscall.NsecToTimespec(d.Nanoseconds())
	box := &ts
	a, err := action.New(h, box, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareTimeout(uintptr(unsafe.Pointer(box)), 0, 0)
		sqe.UserData = tag
	})
	if err != nil {
		return err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return err
	}
	// ETIME is the expected "the timer fired" result, not a failure.
	if err := errnoFromRes(res.CQE.Res); err != nil && err != syscall.ETIME {
		return err
	}
	return nil
}

// Timer reuses one boxed timespec across repeated Sleep-equivalent calls
// to avoid an allocation per delay. Concurrent Delay calls are serialized
// by a lock, so a second caller blocks rather than overwriting the shared
// timespec.
type Timer struct {
	mu sync.Mutex
	ts syscall.Timespec
}

// NewTimer allocates a reusable timer.
func NewTimer() *Timer {
	return &Timer{}
}

// Delay blocks the calling task for d, reusing the Timer's boxed
// timespec instead of allocating a fresh one.
func (t *Timer) Delay(ctx context.Context, h *handle.Handle, d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ts = syscall.NsecToTimespec(d.Nanoseconds())
	a, err := action.New(h, t, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareTimeout(uintptr(unsafe.Pointer(&t.ts)), 0, 0)
		sqe.UserData = tag
	})
	if err != nil {
		return err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return err
	}
	if err := errnoFromRes(res.CQE.Res); err != nil && err != syscall.ETIME {
		return err
	}
	return nil
}
