package ops

import (
	"context"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// iovecAddr extracts the raw address of a non-empty iovec slice's
// backing array, the scatter/gather analogue of bufAddr.
func iovecAddr(v []syscall.Iovec) uintptr {
	if len(v) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&v[0]))
}

// Readv issues a scatter read across bufs at offset.
func Readv(ctx context.Context, h *handle.Handle, fd int, bufs [][]byte, offset uint64) (int32, error) {
	iov := toIovecs(bufs)
	a, err := action.New(h, iov, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareReadv(fd, iovecAddr(iov), uint32(len(iov)), offset)
		sqe.UserData = tag
	})
	if err != nil {
		return 0, err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return 0, err
	}
	return errFromRes(res.CQE.Res)
}

// Writev issues a gather write across bufs at offset.
func Writev(ctx context.Context, h *handle.Handle, fd int, bufs [][]byte, offset uint64) (int32, error) {
	iov := toIovecs(bufs)
	a, err := action.New(h, iov, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareWritev(fd, iovecAddr(iov), uint32(len(iov)), offset)
		sqe.UserData = tag
	})
	if err != nil {
		return 0, err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return 0, err
	}
	return errFromRes(res.CQE.Res)
}

func toIovecs(bufs [][]byte) []syscall.Iovec {
	iov := make([]syscall.Iovec, len(bufs))
	for i, b := range bufs {
		if len(b) == 0 {
			continue
		}
		iov[i] = syscall.Iovec{Base: &b[0]}
		iov[i].SetLen(len(b))
	}
	return iov
}
