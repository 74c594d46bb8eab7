package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Connect issues a connect(2) on fd against the raw sockaddr bytes in
// addr (as produced by, e.g., golang.org/x/sys/unix's sockaddr
// marshalling). addr is copied into the hold so the caller's slice need
// not outlive the call.
func Connect(ctx context.Context, h *handle.Handle, fd int, addr []byte) error {
	boxed := append([]byte(nil), addr...)
	a, err := action.New(h, boxed, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareConnect(fd, bufAddr(boxed), uint64(len(boxed)))
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
