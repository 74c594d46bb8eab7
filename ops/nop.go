package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Nop submits a no-op SQE and waits for its completion. Useful for
// measuring submission/completion round-trip overhead and for exercising
// backpressure (see the proactor-bench example).
func Nop(ctx context.Context, h *handle.Handle) error {
	a, err := action.New(h, struct{}{}, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareNop()
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
