package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Close closes fd through the ring rather than a synchronous close(2),
// so it serializes correctly with other in-flight operations on the same
// descriptor the way the rest of this package does.
func Close(ctx context.Context, h *handle.Handle, fd int) error {
	a, err := action.New(h, struct{}{}, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareClose(fd)
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
