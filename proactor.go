// Package proactor is a single-threaded, io_uring-backed asynchronous
// I/O runtime: tasks submit operations that suspend on an in-flight
// kernel request and resume when its completion is delivered, rather
// than being told the descriptor is merely ready.
package proactor

import (
	"context"
	"sync"

	"github.com/ehrlich-b/go-proactor/internal/handle"
	"github.com/ehrlich-b/go-proactor/internal/logging"
	"github.com/ehrlich-b/go-proactor/internal/ring"
)

// Config sizes a Proactor. The zero value is valid and resolves to
// DefaultConfig's values: there are no files or environment variables to
// configure this runtime, mirroring a constructor-parameter
// DeviceParams/Options shape rather than any file-based config layer.
type Config struct {
	// Entries is the submission/completion ring depth.
	Entries uint32
	// BusyRetries bounds retries on transient kernel EBUSY.
	BusyRetries int
}

// DefaultConfig returns the configuration New uses for a zero-value
// Config.
func DefaultConfig() Config {
	return Config{Entries: DefaultQueueDepth, BusyRetries: DefaultBusyRetries}
}

// Handle is the submission surface tasks push operations through. It is
// an alias for the internal handle type so callers outside this module
// can name it in their own signatures (the ops package accepts the same
// type).
type Handle = handle.Handle

// ErrDisconnected is returned by Push on a weak handle whose proactor has
// been closed.
var ErrDisconnected = handle.ErrDisconnected

// Proactor is the ring owner plus the strong handle every task submits
// operations through.
type Proactor struct {
	owner  *ring.Owner
	strong *Handle

	mu     sync.Mutex
	closed bool
}

// New creates a Proactor with its own submission/completion ring and
// wake signal.
func New(cfg Config) (*Proactor, error) {
	rc := ring.Config{Entries: cfg.Entries, BusyRetries: cfg.BusyRetries}
	o, err := ring.New(rc)
	if err != nil {
		return nil, err
	}
	p := &Proactor{owner: o}
	p.strong = handle.New(o)
	return p, nil
}

// Handle returns the strong handle bound to this Proactor. The strong
// handle does not keep the ring open past Close: Close waits only for the
// standing wake-read's completion, not for tickets this handle produced,
// and a push through it after Close fails with ring.ErrClosed.
func (p *Proactor) Handle() *Handle {
	return p.strong
}

// WeakHandle returns a handle that stops accepting pushes (returning
// ErrDisconnected) once this Proactor has been closed, before touching the
// ring at all. Useful for handing submission access to code whose
// lifetime you don't want to couple to the proactor's.
func (p *Proactor) WeakHandle() *Handle {
	return p.strong.Weak(func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.closed
	})
}

// Run drives the proactor loop — repeated Park calls — until ctx is
// cancelled. Cancellation wakes a blocked Park promptly via the wake
// signal rather than waiting out whatever timeout Park last chose.
func (p *Proactor) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.owner.WakeSignal().Wake()
		case <-stop:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := p.owner.Park(nil); err != nil {
			return err
		}
	}
}

// BlockOn drives fn to completion, running the proactor loop
// concurrently for exactly as long as fn is in flight: the driver and
// the user function race on a result channel, and whichever side
// finishes first stops the other.
func BlockOn[T any](ctx context.Context, p *Proactor, fn func(ctx context.Context, h *Handle) (T, error)) (T, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(runCtx, p.strong)
		done <- outcome{v, err}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- p.Run(runCtx)
	}()

	select {
	case o := <-done:
		cancel()
		<-runErr
		return o.val, o.err
	case err := <-runErr:
		cancel()
		var zero T
		return zero, err
	}
}

// Close implements the shutdown invariant: it hands off to the ring
// owner, which either observes the standing wake-read's completion or
// submits a cancel for it and waits, before freeing ring resources.
func (p *Proactor) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	logging.Default().Debug("closing proactor")
	return p.owner.Close()
}
