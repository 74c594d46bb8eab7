package ops

import (
	"context"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/action"
	"github.com/ehrlich-b/go-proactor/internal/handle"
)

// DataSync requests fdatasync semantics (flush data only) rather than a
// full fsync.
const DataSync uint32 = 1 << 0

func fsyncFlags(f uint32) uint32 {
	const ioringFsyncDatasync = 1 << 0
	if f&DataSync != 0 {
		return ioringFsyncDatasync
	}
	return 0
}

// Fsync flushes fd to stable storage, optionally data-only.
func Fsync(ctx context.Context, h *handle.Handle, fd int, flags uint32) error {
	a, err := action.New(h, struct{}{}, func(sqe *giouring.SubmissionQueueEntry, tag uint64) {
		sqe.PrepareFsync(fd, fsyncFlags(flags))
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
