package ops

import (
	"context"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// cpath is the out-parameter hold for OpenAt: a NUL-terminated copy of the
// path, boxed on the heap so the pointer the kernel reads stays valid for
// the duration of the request even though the caller's string may not be
// addressable.
type cpath []byte

func newCPath(path string) cpath {
	b := make([]byte, len(path)+1)
	copy(b, path)
	return b
}

// OpenAt opens path relative to dirfd (use unix.AT_FDCWD for the process's
// current directory) and returns the new file descriptor.
func OpenAt(ctx context.Context, h *handle.Handle, dirfd int, path string, flags int, mode uint32) (int, error) {
	p := newCPath(path)
	a, err := action.New(h, p, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareOpenat(dirfd, uintptr(unsafe.Pointer(&p[0])), uint32(flags), mode)
		sqe.UserData = tag
	})
	if err != nil {
		return -1, err
	}
	res, err := a.Wait(ctx)
	if err != nil {
		return -1, err
	}
	n, err := errFromRes(res.CQE.Res)
	if err != nil {
		return -1, err
	}
	return int(n), nil
}

// errnoFromRes is a convenience for wrappers (connect, close, fsync, ...) that
// just need pass/fail with no byte count.
func errnoFromRes(res int32) error {
	if res >= 0 {
		return nil
	}
	return syscall.Errno(-res)
}
