package proactor

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the completion-latency histogram buckets in
// nanoseconds, from submission to CQE delivery. Covers 1us to 10s with
// logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Op identifies which ring operation a metrics event belongs to.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpAccept
	OpConnect
	OpPoll
	OpTimeout
	OpFsync
	OpNop
	OpCancel
	OpOpen
	numOps
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpAccept:
		return "accept"
	case OpConnect:
		return "connect"
	case OpPoll:
		return "poll"
	case OpTimeout:
		return "timeout"
	case OpFsync:
		return "fsync"
	case OpNop:
		return "nop"
	case OpCancel:
		return "cancel"
	case OpOpen:
		return "open"
	default:
		return "unknown"
	}
}

type opCounters struct {
	ops    atomic.Uint64
	bytes  atomic.Uint64
	errors atomic.Uint64
}

// Metrics tracks per-operation counters and ring-level statistics for a
// Proactor: atomic counters per ring operation, queue-depth samples, and
// a latency histogram read out via Snapshot.
type Metrics struct {
	byOp [numOps]opCounters

	// Queue statistics: sampled submission-queue occupancy.
	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	// Wake coalescing: how many Wake() calls were absorbed by an
	// already-pending wake versus ones that had to write the eventfd.
	WakeCoalesced atomic.Uint64
	WakeWritten   atomic.Uint64

	// Submission back-pressure: retries spent on transient EBUSY.
	BusyRetries atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Record records the completion of a ring operation: its category,
// how many bytes it moved (0 if not byte-oriented), its submit-to-complete
// latency, and whether it succeeded.
func (m *Metrics) Record(op Op, bytes uint64, latencyNs uint64, success bool) {
	c := &m.byOp[op]
	c.ops.Add(1)
	if success {
		c.bytes.Add(bytes)
	} else {
		c.errors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordWake records a wake signal invocation, distinguishing a write
// that actually touched the eventfd from one coalesced into an
// already-pending wake.
func (m *Metrics) RecordWake(wroteEventfd bool) {
	if wroteEventfd {
		m.WakeWritten.Add(1)
	} else {
		m.WakeCoalesced.Add(1)
	}
}

// RecordBusyRetry records one EBUSY retry spent submitting.
func (m *Metrics) RecordBusyRetry() {
	m.BusyRetries.Add(1)
}

// RecordQueueDepth records a submission-queue occupancy sample.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)

	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the proactor as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// OpSnapshot is a point-in-time snapshot of one operation's counters.
type OpSnapshot struct {
	Ops    uint64
	Bytes  uint64
	Errors uint64
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	ByOp [numOps]OpSnapshot

	AvgQueueDepth float64
	MaxQueueDepth uint32

	WakeCoalesced uint64
	WakeWritten   uint64
	BusyRetries   uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	var totalOps, totalBytes, totalErrors uint64
	for i := range m.byOp {
		c := &m.byOp[i]
		s := OpSnapshot{
			Ops:    c.ops.Load(),
			Bytes:  c.bytes.Load(),
			Errors: c.errors.Load(),
		}
		snap.ByOp[i] = s
		totalOps += s.Ops
		totalBytes += s.Bytes
		totalErrors += s.Errors
	}
	snap.TotalOps = totalOps
	snap.TotalBytes = totalBytes

	snap.MaxQueueDepth = m.MaxQueueDepth.Load()
	snap.WakeCoalesced = m.WakeCoalesced.Load()
	snap.WakeWritten = m.WakeWritten.Load()
	snap.BusyRetries = m.BusyRetries.Load()

	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	for i := range m.byOp {
		m.byOp[i] = opCounters{}
	}
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.WakeCoalesced.Store(0)
	m.WakeWritten.Store(0)
	m.BusyRetries.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, so callers can record
// without depending on *Metrics directly.
type Observer interface {
	// ObserveOp is called for each completed ring operation.
	ObserveOp(op Op, bytes uint64, latencyNs uint64, success bool)

	// ObserveWake is called for each Wake() invocation.
	ObserveWake(wroteEventfd bool)

	// ObserveQueueDepth is called periodically with current queue depth.
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveOp(Op, uint64, uint64, bool) {}
func (NoOpObserver) ObserveWake(bool)                   {}
func (NoOpObserver) ObserveQueueDepth(uint32)           {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveOp(op Op, bytes uint64, latencyNs uint64, success bool) {
	o.metrics.Record(op, bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveWake(wroteEventfd bool) {
	o.metrics.RecordWake(wroteEventfd)
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
