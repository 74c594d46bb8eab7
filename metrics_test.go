package proactor

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.Record(OpRead, 1024, 1_000_000, true)
	m.Record(OpWrite, 2048, 2_000_000, true)
	m.Record(OpRead, 512, 500_000, false)

	snap = m.Snapshot()

	if snap.ByOp[OpRead].Ops != 2 {
		t.Errorf("Expected 2 read ops, got %d", snap.ByOp[OpRead].Ops)
	}
	if snap.ByOp[OpWrite].Ops != 1 {
		t.Errorf("Expected 1 write op, got %d", snap.ByOp[OpWrite].Ops)
	}
	if snap.ByOp[OpRead].Bytes != 1024 {
		t.Errorf("Expected 1024 read bytes, got %d", snap.ByOp[OpRead].Bytes)
	}
	if snap.ByOp[OpWrite].Bytes != 2048 {
		t.Errorf("Expected 2048 write bytes, got %d", snap.ByOp[OpWrite].Bytes)
	}
	if snap.ByOp[OpRead].Errors != 1 {
		t.Errorf("Expected 1 read error, got %d", snap.ByOp[OpRead].Errors)
	}
	if snap.ByOp[OpWrite].Errors != 0 {
		t.Errorf("Expected 0 write errors, got %d", snap.ByOp[OpWrite].Errors)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	m.RecordQueueDepth(20)
	m.RecordQueueDepth(15)

	snap := m.Snapshot()

	if snap.MaxQueueDepth != 20 {
		t.Errorf("Expected max queue depth 20, got %d", snap.MaxQueueDepth)
	}

	expectedAvg := float64(10+20+15) / 3.0
	if snap.AvgQueueDepth < expectedAvg-0.1 || snap.AvgQueueDepth > expectedAvg+0.1 {
		t.Errorf("Expected avg queue depth %.1f, got %.1f", expectedAvg, snap.AvgQueueDepth)
	}
}

func TestMetricsWake(t *testing.T) {
	m := NewMetrics()

	m.RecordWake(true)
	m.RecordWake(false)
	m.RecordWake(false)

	snap := m.Snapshot()
	if snap.WakeWritten != 1 {
		t.Errorf("Expected 1 wake write, got %d", snap.WakeWritten)
	}
	if snap.WakeCoalesced != 2 {
		t.Errorf("Expected 2 coalesced wakes, got %d", snap.WakeCoalesced)
	}
}

func TestMetricsBusyRetry(t *testing.T) {
	m := NewMetrics()

	m.RecordBusyRetry()
	m.RecordBusyRetry()

	snap := m.Snapshot()
	if snap.BusyRetries != 2 {
		t.Errorf("Expected 2 busy retries, got %d", snap.BusyRetries)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.Record(OpRead, 1024, 1_000_000, true)
	m.Record(OpWrite, 1024, 2_000_000, true)

	snap := m.Snapshot()

	expectedAvgNs := uint64(1_500_000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()

	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()

	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.Record(OpRead, 1024, 1_000_000, true)
	m.Record(OpWrite, 2048, 2_000_000, true)
	m.RecordQueueDepth(10)

	snap := m.Snapshot()
	if snap.TotalOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
	if snap.MaxQueueDepth != 0 {
		t.Errorf("Expected 0 max queue depth after reset, got %d", snap.MaxQueueDepth)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveOp(OpRead, 1024, 1_000_000, true)
	observer.ObserveWake(true)
	observer.ObserveQueueDepth(10)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveOp(OpRead, 1024, 1_000_000, true)
	metricsObserver.ObserveOp(OpWrite, 2048, 2_000_000, true)

	snap := m.Snapshot()
	if snap.ByOp[OpRead].Ops != 1 {
		t.Errorf("Expected 1 read op from observer, got %d", snap.ByOp[OpRead].Ops)
	}
	if snap.ByOp[OpWrite].Ops != 1 {
		t.Errorf("Expected 1 write op from observer, got %d", snap.ByOp[OpWrite].Ops)
	}
	if snap.ByOp[OpRead].Bytes != 1024 {
		t.Errorf("Expected 1024 read bytes from observer, got %d", snap.ByOp[OpRead].Bytes)
	}
	if snap.ByOp[OpWrite].Bytes != 2048 {
		t.Errorf("Expected 2048 write bytes from observer, got %d", snap.ByOp[OpWrite].Bytes)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.Record(OpRead, 1024, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.Record(OpWrite, 1024, 5_000_000, true) // 5ms
	}
	m.Record(OpWrite, 1024, 50_000_000, true) // 50ms

	snap := m.Snapshot()

	if snap.TotalOps != 100 {
		t.Errorf("Expected 100 total ops, got %d", snap.TotalOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}

	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
