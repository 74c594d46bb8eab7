// Package wake implements the proactor's cross-thread wake signal: an
// eventfd paired with a small state machine so that repeated wakes inside
// one park cycle coalesce into a single kernel read.
package wake

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-proactor/internal/logging"
)

// state bits, stored in a single uint32 so Parking/Ready transitions are
// a single CAS rather than two racing fields.
const (
	stateParking uint32 = 1 << iota // a wake-read SQE is currently in flight
	stateReady                      // wake() has fired since the last reset
)

// Signal is the event-fd backed wake primitive. A Signal is shared between
// the ring owner (which parks on it) and any number of handles (which call
// Wake from arbitrary goroutines).
type Signal struct {
	fd    int
	state atomic.Uint32
}

// New creates a fresh, unparked wake signal.
func New() (*Signal, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Signal{fd: fd}, nil
}

// Fd returns the underlying event-fd, for use as the target of the
// wake-read SQE.
func (s *Signal) Fd() int {
	return s.fd
}

// Close releases the event-fd. The caller must ensure no wake-read SQE is
// in flight against this fd (see the ring owner's shutdown invariant).
func (s *Signal) Close() error {
	return unix.Close(s.fd)
}

// Wake marks the signal ready and, if a wake-read SQE is currently parked
// on the fd, writes to it so the kernel completes that read. Concurrent
// and repeated calls before the next Reset coalesce into one wakeup.
func (s *Signal) Wake() {
	prev := s.setBits(stateReady)
	if prev&stateReady != 0 || prev&stateParking == 0 {
		// Either someone already woke this parking window (READY was
		// already set: a previous Wake already wrote, or will), or
		// nobody is parked on the fd right now — the READY bit alone is
		// enough to make the next park() call avoid blocking.
		return
	}
	var buf [8]byte
	buf[0] = 1
	if _, err := unix.Write(s.fd, buf[:]); err != nil && err != unix.EAGAIN {
		logging.Default().Warn("wake signal write failed", "error", err)
	}
}

// Load reports whether the signal is currently ready and/or parked,
// without mutating state. Used by park() to decide whether to block.
func (s *Signal) Load() (ready, parking bool) {
	v := s.state.Load()
	return v&stateReady != 0, v&stateParking != 0
}

// MarkParking records that a wake-read SQE has been pushed into the
// submission queue for this park cycle.
func (s *Signal) MarkParking() {
	s.setBits(stateParking)
}

// Reset clears both bits at the end of a park cycle, once the wake-read's
// completion (if any) has been drained.
func (s *Signal) Reset() {
	s.state.Store(0)
}

// Unpark clears only the parking bit; called when the CQE for the
// wake-read SQE has been observed but the cycle isn't finished yet.
func (s *Signal) Unpark() {
	s.clearBits(stateParking)
}

func (s *Signal) setBits(bits uint32) (prev uint32) {
	for {
		prev = s.state.Load()
		if prev&bits == bits || s.state.CompareAndSwap(prev, prev|bits) {
			return prev
		}
	}
}

func (s *Signal) clearBits(bits uint32) {
	for {
		prev := s.state.Load()
		if prev&bits == 0 || s.state.CompareAndSwap(prev, prev&^bits) {
			return
		}
	}
}
