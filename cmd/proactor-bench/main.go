// Command proactor-bench measures submission/completion round-trip
// throughput by driving a configurable number of concurrent Nop
// operations through the proactor runtime and reporting latency
// percentiles from Metrics. Nothing in this program records busy retries
// into Metrics, so the busy-retries line it prints reads 0.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ehrlich-b/go-proactor"
	"github.com/ehrlich-b/go-proactor/internal/logging"
	"github.com/ehrlich-b/go-proactor/internal/taskpool"
	"github.com/ehrlich-b/go-proactor/ops"
)

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent submitters")
		total       = flag.Int("total", 100_000, "total Nop operations to submit")
		entries     = flag.Uint("entries", 256, "ring entries")
	)
	flag.Parse()

	logging.SetDefault(logging.NewLogger(logging.DefaultConfig()))

	cfg := proactor.DefaultConfig()
	cfg.Entries = uint32(*entries)

	p, err := proactor.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create proactor: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	metrics := proactor.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	_, err = proactor.BlockOn(ctx, p, func(ctx context.Context, h *proactor.Handle) (struct{}, error) {
		return struct{}{}, runBench(ctx, h, *concurrency, *total, metrics)
	})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		os.Exit(1)
	}

	snap := metrics.Snapshot()
	fmt.Printf("completed %d nops in %s (%.0f ops/sec)\n", *total, elapsed, float64(*total)/elapsed.Seconds())
	fmt.Printf("p50=%dns p99=%dns p999=%dns avg=%dns\n",
		snap.LatencyP50Ns, snap.LatencyP99Ns, snap.LatencyP999Ns, snap.AvgLatencyNs)
	fmt.Printf("busy retries=%d\n", snap.BusyRetries)
}

func runBench(ctx context.Context, h *proactor.Handle, concurrency, total int, metrics *proactor.Metrics) error {
	pool := taskpool.New(ctx, taskpool.Config{MaxWorkers: uint(concurrency), QueueDepth: uint(concurrency)})
	defer pool.Close()

	var wg sync.WaitGroup
	wg.Add(total)

	for i := 0; i < total; i++ {
		pool.Go(func(ctx context.Context) error {
			defer wg.Done()
			start := time.Now()
			err := ops.Nop(ctx, h)
			metrics.Record(proactor.OpNop, 0, uint64(time.Since(start).Nanoseconds()), err == nil)
			return err
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
