package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// Read issues a streaming read (position -1) into buf, a pass-through
// action: buf is the hold, and on success the returned slice is the
// prefix of buf the kernel filled in (empty at EOF).
func Read(ctx context.Context, h *handle.Handle, fd int, buf []byte) ([]byte, error) {
	a, err := action.New(h, buf, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareRead(fd, bufAddr(buf), uint32(len(buf)), ^uint64(0))
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
	return res.Hold[:n], nil
}

// ReadAt issues a positional read at offset into buf.
func ReadAt(ctx context.Context, h *handle.Handle, fd int, buf []byte, offset uint64) ([]byte, error) {
	a, err := action.New(h, buf, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareRead(fd, bufAddr(buf), uint32(len(buf)), offset)
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
	return res.Hold[:n], nil
}
