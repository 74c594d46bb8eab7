package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Write issues a streaming write (position -1) of buf, a pass-through
// action: buf is the hold, and on success the returned slice is the
// unconsumed remainder of buf.
func Write(ctx context.Context, h *handle.Handle, fd int, buf []byte) ([]byte, error) {
	a, err := action.New(h, buf, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareWrite(fd, bufAddr(buf), uint32(len(buf)), ^uint64(0))
		sqe.UserData = tag
	})
	if err != nil {
		return nil, err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return nil, err
	}
	n, err := errFromRes(res.CQE.Res)
	if err != nil {
		return nil, err
	}
	return res.Hold[n:], nil
}

// WriteAt issues a positional write of buf at offset.
func WriteAt(ctx context.Context, h *handle.Handle, fd int, buf []byte, offset uint64) ([]byte, error) {
	a, err := action.New(h, buf, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareWrite(fd, bufAddr(buf), uint32(len(buf)), offset)
		sqe.UserData = tag
	})
	if err != nil {
		return nil, err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return nil, err
	}
	n, err := errFromRes(res.CQE.Res)
	if err != nil {
		return nil, err
	}
	return res.Hold[n:], nil
}
