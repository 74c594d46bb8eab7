package ops

import (
	"context"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// acceptHold is the out-parameter box for Accept: a generic sockaddr
// buffer plus its length, boxed on the heap so the pointers the kernel
// writes through stay valid across the Action's copy of the hold.
type acceptHold struct {
	addr [128]byte
	alen uint32
}

// Accept accepts a connection on the listening socket fd and returns the
// new connection's file descriptor and the raw sockaddr bytes the kernel
// wrote back.
func Accept(ctx context.Context, h *handle.Handle, fd int, flags int) (int, []byte, error) {
	box := &acceptHold{alen: uint32(unsafe.Sizeof(acceptHold{}.addr))}
	a, err := action.New(h, box, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareAccept(fd, uintptr(unsafe.Pointer(&box.addr[0])), uintptr(unsafe.Pointer(&box.alen)), flags)
		sqe.UserData = tag
	})
	if err != nil {
		return -1, nil, err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return -1, nil, err
	}
	n, err := errFromRes(res.CQE.Res)
	if err != nil {
		return -1, nil, err
	}
	alen := res.Hold.alen
	if alen > uint32(len(res.Hold.addr)) {
		alen = uint32(len(res.Hold.addr))
	}
	return int(n), res.Hold.addr[:alen], nil
}
