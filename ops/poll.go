package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Poll readiness masks.
const (
	Readable uint32 = 1 << 0
	Writable uint32 = 1 << 1
)

// pollMask translates the runtime-agnostic Readable/Writable flags into
// the host's POLLIN/POLLOUT bits.
func pollMask(m uint32) uint32 {
	const (
		pollIn  = 0x0001
		pollOut = 0x0004
	)
	var out uint32
	if m&Readable != 0 {
		out |= pollIn
	}
	if m&Writable != 0 {
		out |= pollOut
	}
	return out
}

// PollAdd waits for fd to become ready for any of the events in mask.
// Completion is one-shot: a second wait requires a second PollAdd, it
// does not rearm itself.
func PollAdd(ctx context.Context, h *handle.Handle, fd int, mask uint32) error {
	a, err := action.New(h, struct{}{}, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PreparePollAdd(fd, pollMask(mask))
		sqe.UserData = tag
	})
	if err != nil {
		return err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return err
	}
	return errnoFromRes(res.CQE.Res)
}

// Ready is a convenience over PollAdd for callers that only want a
// readiness signal, not an actual I/O attempt.
func Ready(ctx context.Context, h *handle.Handle, fd int, mask uint32) error {
	return PollAdd(ctx, h, fd, mask)
}
