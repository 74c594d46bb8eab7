// Package taskpool runs user tasks concurrently, optionally bounded in
// worker count, against a single proactor. Built on github.com/ygrebnov/workers — a
// fixed-or-dynamic worker pool with Start/AddTask/GetErrors — rather
// than a hand-rolled goroutine-per-task loop.
package taskpool

import (
	"context"
	"errors"
	"sync"

	"github.com/ygrebnov/workers"
)

// Task is a unit of work run by the pool. Each task gets the same handle
// bound to the proactor so tasks can submit concurrently; the pool itself
// never touches the ring, only schedules task bodies, which reach the
// ring solely through the handle's own locking.
type Task func(ctx context.Context) error

// Config mirrors github.com/ygrebnov/workers.Config's shape: a
// worker-count cap (0 means a dynamic pool that grows per task) and the
// task queue's buffer depth.
type Config struct {
	// MaxWorkers bounds how many tasks run concurrently. Zero means a
	// dynamic pool (workers.Config's own default).
	MaxWorkers uint
	// QueueDepth sizes the pool's task buffer (workers.Config.TasksBufferSize).
	QueueDepth uint
}

// DefaultConfig returns a dynamic pool with a modest task buffer.
func DefaultConfig() Config {
	return Config{MaxWorkers: 0, QueueDepth: 64}
}

// Pool runs tasks against a shared cancellation scope, draining their
// errors into an aggregate that Close reports (see Close for which errors
// that covers).
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc

	w workers.Workers[struct{}]

	errMu sync.Mutex
	errs  []error

	drainDone chan struct{}
	closed    sync.Once
}

// New creates a pool bound to parent's cancellation; cancelling parent
// (or calling Close) stops scheduling further tasks.
func New(parent context.Context, cfg Config) *Pool {
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	ctx, cancel := context.WithCancel(parent)

	w := workers.New[struct{}](ctx, &workers.Config{
		MaxWorkers:       cfg.MaxWorkers,
		StartImmediately: true,
		TasksBufferSize:  cfg.QueueDepth,
		ErrorsBufferSize: cfg.QueueDepth,
	})

	p := &Pool{
		ctx:       ctx,
		cancel:    cancel,
		w:         w,
		drainDone: make(chan struct{}),
	}

	go p.drainErrors()

	return p
}

func (p *Pool) drainErrors() {
	defer close(p.drainDone)
	for {
		select {
		case err, ok := <-p.w.GetErrors():
			if !ok {
				return
			}
			p.errMu.Lock()
			p.errs = append(p.errs, err)
			p.errMu.Unlock()
		case <-p.ctx.Done():
			// Keep draining whatever errors are already buffered so a
			// task that errored right before cancellation isn't lost.
			for {
				select {
				case err, ok := <-p.w.GetErrors():
					if !ok {
						return
					}
					p.errMu.Lock()
					p.errs = append(p.errs, err)
					p.errMu.Unlock()
				default:
					return
				}
			}
		}
	}
}

// Go schedules t to run against the pool's task buffer, blocking only if
// the buffer (sized by Config.QueueDepth) is full and the pool isn't
// using a dynamic worker count.
func (p *Pool) Go(t Task) {
	_ = p.w.AddTask(func(ctx context.Context) error {
		return t(ctx)
	})
}

// Close cancels the pool's scheduling context and reports whatever task
// errors had already arrived on the library's error channel. Per
// workers' own design the context cancellation only stops task
// dispatch and unblocks tasks that themselves select on ctx.Done(); it
// does not join already-running task goroutines (the library exposes no
// such wait), so this is a best-effort drain, not a guaranteed quiescent
// shutdown. Safe to call more than once.
func (p *Pool) Close() error {
	var err error
	p.closed.Do(func() {
		p.cancel()
		<-p.drainDone
		err = errors.Join(p.errs...)
	})
	return err
}
