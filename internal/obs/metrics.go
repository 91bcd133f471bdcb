// Package obs collects lightweight in-process counters and latency
// stats for the tick pipeline.
package obs

import (
	"sync/atomic"
	"time"
)

// Metrics is safe for concurrent use. A nil *Metrics is a no-op sink.
type Metrics struct {
	ticks       uint64
	staleSkips  uint64
	submits     uint64
	rejects     uint64
	fills       uint64
	cancels     uint64
	cancelsLost uint64
	subDrops    uint64

	tickLatency LatencyStats
	fillLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Ticks       uint64
	StaleSkips  uint64
	Submits     uint64
	Rejects     uint64
	Fills       uint64
	Cancels     uint64
	CancelsLost uint64
	SubDrops    uint64
	TickLatency LatencySnapshot
	FillLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncTick records one processed feed tick.
func (m *Metrics) IncTick() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
}

// IncStaleSkip records a fill evaluation skipped on stale data.
func (m *Metrics) IncStaleSkip() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.staleSkips, 1)
}

// IncSubmit records an accepted order submission.
func (m *Metrics) IncSubmit() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submits, 1)
}

// IncReject records a rejected order submission.
func (m *Metrics) IncReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejects, 1)
}

// IncFill records a completed fill.
func (m *Metrics) IncFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fills, 1)
}

// IncCancel records a successful cancellation.
func (m *Metrics) IncCancel() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancels, 1)
}

// IncCancelLost records a cancel that lost the race to a fill.
func (m *Metrics) IncCancelLost() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancelsLost, 1)
}

// IncSubDrop records a snapshot dropped on a slow subscriber.
func (m *Metrics) IncSubDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.subDrops, 1)
}

// ObserveTick measures one full tick pipeline pass.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// ObserveFill measures submission-to-fill latency.
func (m *Metrics) ObserveFill(d time.Duration) {
	if m == nil {
		return
	}
	m.fillLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Ticks:       atomic.LoadUint64(&m.ticks),
		StaleSkips:  atomic.LoadUint64(&m.staleSkips),
		Submits:     atomic.LoadUint64(&m.submits),
		Rejects:     atomic.LoadUint64(&m.rejects),
		Fills:       atomic.LoadUint64(&m.fills),
		Cancels:     atomic.LoadUint64(&m.cancels),
		CancelsLost: atomic.LoadUint64(&m.cancelsLost),
		SubDrops:    atomic.LoadUint64(&m.subDrops),
		TickLatency: m.tickLatency.Snapshot(),
		FillLatency: m.fillLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
