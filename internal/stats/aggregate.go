package stats

import (
	"errors"
	"math"
	"sort"
	"time"

	"sitetester/internal/runner"
)

// ErrEmptySample is returned when there are no records to aggregate.
var ErrEmptySample = errors.New("no request records to aggregate")

// histogramBounds are the upper bounds of the fixed latency buckets; the
// last bucket is open.
var histogramBounds = []struct {
	label string
	upper time.Duration
}{
	{"0-100ms", 100 * time.Millisecond},
	{"100-300ms", 300 * time.Millisecond},
	{"300-500ms", 500 * time.Millisecond},
	{"500-1000ms", time.Second},
	{"1-2s", 2 * time.Second},
	{">2s", 0},
}

// Aggregate reduces a finished run into a Report in a single pass.
// Expected defaults to the record count and the timestamps to the span of
// the records when the caller leaves them unset. For an interrupted run
// Total is the number of requests that completed.
func Aggregate(res runner.Result) (*Report, error) {
	records := res.Records
	if len(records) == 0 {
		return nil, ErrEmptySample
	}

	rep := &Report{
		Latency: Latency{
			Histogram: newHistogram(),
		},
	}

	var (
		sample    = make([]time.Duration, 0, len(records))
		elapsed   time.Duration
		downloads int64
		ttfb      time.Duration
		connect   time.Duration
		dialled   int
		codes     = map[int]*CodeCount{}
	)

	for _, rec := range records {
		if rec.Failure == runner.FailureCancelled {
			rep.Cancelled++
			continue
		}
		sample = append(sample, rec.Elapsed)
		elapsed += rec.Elapsed

		if !rec.Succeeded() {
			rep.Failures.add(rec.Failure)
			continue
		}

		meta := rec.Response
		rep.Received++
		observeHistogram(rep.Latency.Histogram, rec.Elapsed)
		downloads += meta.ContentLength
		ttfb += meta.TTFB
		if meta.Connect > 0 {
			connect += meta.Connect
			dialled++
		}
		rep.Network.LastRedirects = meta.Redirects
		if meta.CacheHit {
			rep.Network.Cached++
		}

		rep.Status.Classes[statusClass(meta.StatusCode)-1]++
		if cc, ok := codes[meta.StatusCode]; ok {
			cc.Count++
		} else {
			codes[meta.StatusCode] = &CodeCount{Code: meta.StatusCode, Reason: meta.Reason, Count: 1}
		}

		if meta.StatusCode >= 400 {
			rep.Failures.add(runner.FailureHTTP)
		} else {
			rep.Success++
		}
	}
	if len(sample) == 0 {
		return nil, ErrEmptySample
	}

	rep.Total = res.Expected
	if rep.Total == 0 || rep.Cancelled > 0 || len(records) < res.Expected {
		rep.Total = len(sample)
	}

	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })
	rep.Latency.Min = sample[0]
	rep.Latency.Max = sample[len(sample)-1]
	rep.Latency.Mean = elapsed / time.Duration(len(sample))
	rep.Latency.Median = Percentile(sample, 50)
	rep.Latency.P75 = Percentile(sample, 75)
	rep.Latency.P90 = Percentile(sample, 90)
	rep.Latency.P95 = Percentile(sample, 95)
	rep.Latency.P99 = Percentile(sample, 99)

	rep.Status.Codes = make([]CodeCount, 0, len(codes))
	for _, cc := range codes {
		rep.Status.Codes = append(rep.Status.Codes, *cc)
	}
	sort.Slice(rep.Status.Codes, func(i, j int) bool {
		return rep.Status.Codes[i].Code < rep.Status.Codes[j].Code
	})

	if rep.Received > 0 {
		rep.Network.MeanDownloadSizeMB = float64(downloads) / float64(rep.Received) / 1024 / 1024
		rep.Network.MeanTTFB = ttfb / time.Duration(rep.Received)
	}
	if dialled > 0 {
		rep.Network.MeanConnect = connect / time.Duration(dialled)
	}
	// A zero mean latency would divide by zero; the speed is reported as 0.
	if meanSec := rep.Latency.Mean.Seconds(); meanSec > 0 {
		rep.Network.DownloadSpeedMBps = rep.Network.MeanDownloadSizeMB / meanSec
	}

	rep.Timestamps = timestamps(res)
	if wall := rep.Timestamps.WallDuration.Seconds(); wall > 0 {
		rep.Load.RPSAchieved = float64(rep.Total) / wall
	}
	return rep, nil
}

// Percentile returns the p-th percentile (0..100) of an ascending sample,
// interpolating linearly between the two closest ranks.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := rank - float64(lower)
	v := float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight
	return time.Duration(math.Round(v))
}

func newHistogram() []Bucket {
	buckets := make([]Bucket, len(histogramBounds))
	var lower time.Duration
	for i, b := range histogramBounds {
		buckets[i] = Bucket{Label: b.label, Lower: lower, Upper: b.upper}
		lower = b.upper
	}
	return buckets
}

func observeHistogram(buckets []Bucket, d time.Duration) {
	for i := range buckets {
		if buckets[i].Upper == 0 || d < buckets[i].Upper {
			buckets[i].Count++
			return
		}
	}
}

// statusClass returns the hundreds digit clamped into 1..5.
func statusClass(code int) int {
	c := code / 100
	if c < 1 {
		return 1
	}
	if c > 5 {
		return 5
	}
	return c
}

func timestamps(res runner.Result) Timestamps {
	ts := Timestamps{Start: res.Started, End: res.Finished}
	if ts.Start.IsZero() || ts.End.IsZero() {
		for _, rec := range res.Records {
			if rec.Start.IsZero() {
				continue
			}
			end := rec.Start.Add(rec.Elapsed)
			if res.Started.IsZero() && (ts.Start.IsZero() || rec.Start.Before(ts.Start)) {
				ts.Start = rec.Start
			}
			if res.Finished.IsZero() && end.After(ts.End) {
				ts.End = end
			}
		}
	}
	if !ts.Start.IsZero() && !ts.End.IsZero() {
		ts.WallDuration = ts.End.Sub(ts.Start)
	}
	return ts
}
