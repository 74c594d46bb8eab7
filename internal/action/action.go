// Package action implements the action-wrapper safety protocol: the
// pair of a caller-owned value and the ticket awaiting its completion,
// with the cancel-and-leak rule that keeps buffers alive until the
// kernel's real completion arrives even when the caller gives up early.
package action

import (
	"context"
	"runtime"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/handle"
	"github.com/ehrlich-b/go-proactor/internal/ring"
	"github.com/ehrlich-b/go-proactor/internal/ticket"
)

// Result is what an Action resolves to: the caller's value (buffer,
// out-parameter, or nothing for self-owned operations) plus the raw
// completion.
type Result[T any] struct {
	Hold T
	CQE  ticket.CQE
}

// Action is a submitted operation together with the caller's value that
// the kernel holds pointers into for the duration of the request.
type Action[T any] struct {
	hold   T
	ticket *ticket.Ticket
	h      *handle.Handle
}

// New builds the submission entry via build (which receives the SQE and
// the tag to stamp as user-data), pushes it through h, and on success
// returns an Action holding value until the completion arrives.
//
// The caller asserts that every memory region build captures into the
// SQE (pointers derived from value) outlives the Action's resolution —
// exactly the unsafe contract Push documents.
func New[T any](h *handle.Handle, value T, build func(sqe *giouring.SubmissionQueueEntry, tag uint64)) (*Action[T], error) {
	t, err := h.Push(build)
	if err != nil {
		return nil, err
	}
	return &Action[T]{hold: value, ticket: t, h: h}, nil
}

// Tag returns the ticket identity this Action's submission was stamped
// with, for callers that want to request cancellation explicitly via
// ops.Cancel rather than by cancelling the context passed to Wait.
func (a *Action[T]) Tag() uint64 {
	return a.ticket.Tag()
}

// Wait drives the Action to completion. On success it returns the held
// value and the raw CQE. On context cancellation it performs the
// cancel-and-leak protocol: submit AsyncCancel tagged EMPTY against the
// ticket's identity, then hand the leaked hold off to a background
// goroutine that blocks uninterruptibly until the real completion
// arrives and drops it there — this function itself returns immediately
// with the zero value, never the live buffer, so a caller that moved on
// after cancellation can never observe or reuse memory the kernel still
// references.
func (a *Action[T]) Wait(ctx context.Context) (Result[T], error) {
	cqe, err := a.ticket.Wait(ctx)
	if err == nil {
		return Result[T]{Hold: a.hold, CQE: cqe}, nil
	}

	// ctx was cancelled before the ticket resolved. The hold is leaked
	// into the waiter below; Action itself must not touch it again.
	a.cancelAndLeak()
	return Result[T]{}, err
}

func (a *Action[T]) cancelAndLeak() {
	if a.ticket.IsResolved() {
		return
	}

	tag := a.ticket.Tag()
	_ = a.h.PushRaw(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareCancel64(tag, 0)
		sqe.UserData = ring.TagEmpty
	})

	hold := a.hold
	t := a.ticket
	go func() {
		t.Recv()
		runtime.KeepAlive(hold)
	}()
}
