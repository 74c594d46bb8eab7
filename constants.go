package proactor

import "github.com/ehrlich-b/go-proactor/internal/ring"

// Reserved tag values. Every other tag value is the numeric identity of a
// live ticket.
const (
	// TagWake marks the standing wake-read SQE.
	TagWake uint64 = ring.TagWake
	// TagEmpty marks fire-and-forget submissions (AsyncCancel, ...).
	TagEmpty uint64 = ring.TagEmpty
)

// Re-exported ring defaults for callers that don't need the full Config.
const (
	DefaultQueueDepth  = ring.DefaultQueueDepth
	DefaultBusyRetries = ring.DefaultBusyRetries
)
