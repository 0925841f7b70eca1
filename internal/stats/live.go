package stats

import (
	"sync/atomic"

	"sitetester/internal/runner"
)

// Live tracks a run while it is in progress. It is an approximation for
// progress display only; the final numbers come from Aggregate.
type Live struct {
	requests uint64
	success  uint64
	fail     uint64
	bytes    uint64

	latency *SafeHistogram
}

// Snapshot is a point-in-time copy of Live, cheap to pass around.
type Snapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64
	Inflight int64

	P50Ms  float64
	P90Ms  float64
	P99Ms  float64
	MaxMs  float64
	MeanMs float64
}

func NewLive() *Live {
	return &Live{latency: NewSafeHistogram()}
}

// Observe implements runner.Observer. Requests cut off by an interrupt are
// ignored.
func (l *Live) Observe(rec runner.RequestRecord) {
	if rec.Failure == runner.FailureCancelled {
		return
	}
	atomic.AddUint64(&l.requests, 1)
	if rec.Succeeded() && rec.Response.StatusCode < 400 {
		atomic.AddUint64(&l.success, 1)
	} else {
		atomic.AddUint64(&l.fail, 1)
	}
	if rec.Response != nil {
		atomic.AddUint64(&l.bytes, uint64(rec.Response.ContentLength))
	}
	l.latency.Record(rec.Elapsed)
}

// Snapshot copies the current counters. inflight comes from the runner.
func (l *Live) Snapshot(inflight int64) Snapshot {
	return Snapshot{
		Requests: atomic.LoadUint64(&l.requests),
		Success:  atomic.LoadUint64(&l.success),
		Fail:     atomic.LoadUint64(&l.fail),
		Bytes:    atomic.LoadUint64(&l.bytes),
		Inflight: inflight,
		P50Ms:    ms(l.latency.Quantile(50).Seconds()),
		P90Ms:    ms(l.latency.Quantile(90).Seconds()),
		P99Ms:    ms(l.latency.Quantile(99).Seconds()),
		MaxMs:    ms(l.latency.Max().Seconds()),
		MeanMs:   ms(l.latency.Mean().Seconds()),
	}
}

// ErrorRate returns failed requests as a percentage of completed ones.
func (s Snapshot) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Fail) / float64(s.Requests) * 100
}

func ms(sec float64) float64 {
	return sec * 1000
}
