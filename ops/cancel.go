package ops

import (
	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-proactor/internal/handle"
	"github.com/ehrlich-b/go-proactor/internal/ring"
)

// Cancel requests cancellation of the in-flight operation identified by
// targetTag (a ticket's Tag, as threaded through by whatever op submitted
// it). The request is fire-and-forget, tagged EMPTY like every AsyncCancel
// submission: this call returns once the cancel request itself has been
// enqueued, not once it has taken effect. The target operation's own
// completion — whether it succeeded, raced the cancel, or was cancelled —
// still arrives through the target's own ticket exactly as it would have
// without this call.
//
// Callers that want to give up on a still-running operation may call
// this directly, or simply cancel the context passed to that operation's
// wait, which does the same thing via the cancel-and-leak protocol.
func Cancel(h *handle.Handle, targetTag uint64) error {
	return h.PushRaw(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareCancel64(targetTag, 0)
		sqe.UserData = ring.TagEmpty
	})
}
