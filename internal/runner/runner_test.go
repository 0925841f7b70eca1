package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sitetester/internal/config"
)

func okServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		w.Write([]byte("OK"))
	}))
	t.Cleanup(server.Close)
	return server
}

func runConfig(target string, rps, duration int) config.Config {
	cfg := testConfig(target)
	cfg.RPS = rps
	cfg.Duration = duration
	return cfg
}

type countingObserver struct {
	n int64
}

func (o *countingObserver) Observe(RequestRecord) {
	atomic.AddInt64(&o.n, 1)
}

func TestRun_RecordCount(t *testing.T) {
	tests := []struct {
		rps, duration int
	}{
		{1, 1},
		{3, 2},
		{7, 1},
	}

	for _, tt := range tests {
		var hits int64
		server := okServer(t, &hits)

		obs := &countingObserver{}
		r := NewRunner(runConfig(server.URL, tt.rps, tt.duration), WithObserver(obs))
		res, err := r.Run(context.Background())
		if err != nil {
			t.Fatalf("rps=%d duration=%d: %v", tt.rps, tt.duration, err)
		}

		want := tt.rps * tt.duration
		if len(res.Records) != want || res.Expected != want {
			t.Errorf("rps=%d duration=%d: got %d records (expected %d), want %d",
				tt.rps, tt.duration, len(res.Records), res.Expected, want)
		}
		if atomic.LoadInt64(&hits) != int64(want) {
			t.Errorf("server saw %d requests, want %d", hits, want)
		}
		if atomic.LoadInt64(&obs.n) != int64(want) {
			t.Errorf("observer saw %d records, want %d", obs.n, want)
		}
		for slot, rec := range res.Records {
			if rec.Window*tt.rps+rec.Index != slot {
				t.Errorf("record at slot %d is (%d,%d)", slot, rec.Window, rec.Index)
			}
			if !rec.Succeeded() {
				t.Errorf("slot %d failed: %s", slot, rec.Err)
			}
		}
		if r.Inflight() != 0 {
			t.Errorf("inflight = %d after run", r.Inflight())
		}
	}
}

func TestRun_WindowPacing(t *testing.T) {
	var hits int64
	server := okServer(t, &hits)

	r := NewRunner(runConfig(server.URL, 5, 3))
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 15 || atomic.LoadInt64(&hits) != 15 {
		t.Fatalf("records=%d hits=%d, want 15", len(res.Records), hits)
	}

	step := 200 * time.Millisecond
	var prev time.Time
	for i, rec := range res.Records[:5] {
		if rec.Window != 0 {
			t.Fatalf("record %d in window %d", i, rec.Window)
		}
		if !prev.IsZero() && rec.Start.Before(prev) {
			t.Errorf("start %d before start %d", i, i-1)
		}
		prev = rec.Start

		offset := rec.Start.Sub(res.Started)
		want := time.Duration(i) * step
		if offset < want || offset > want+150*time.Millisecond {
			t.Errorf("invocation %d started at %s, want about %s", i, offset, want)
		}
	}

	for _, rec := range res.Records {
		earliest := time.Duration(rec.Window)*time.Second + time.Duration(rec.Index)*step
		if rec.Start.Sub(res.Started) < earliest {
			t.Errorf("(%d,%d) started early: %s < %s", rec.Window, rec.Index, rec.Start.Sub(res.Started), earliest)
		}
	}
}

func TestRun_DoesNotWaitForSlowRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(1500 * time.Millisecond):
		}
		w.Write([]byte("slow"))
	}))
	defer server.Close()

	cfg := runConfig(server.URL, 2, 2)
	cfg.Timeout = 3 * time.Second

	res, err := NewRunner(cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 4 {
		t.Fatalf("got %d records", len(res.Records))
	}
	second := res.Records[2]
	if second.Window != 1 || second.Index != 0 {
		t.Fatalf("unexpected slot order: %+v", second)
	}
	if offset := second.Start.Sub(res.Started); offset > 1300*time.Millisecond {
		t.Errorf("window 1 started at %s, it waited for window 0 to finish", offset)
	}
	for _, rec := range res.Records {
		if !rec.Succeeded() {
			t.Errorf("(%d,%d) failed: %s", rec.Window, rec.Index, rec.Err)
		}
	}
}

func TestRun_TimeoutRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := runConfig(server.URL, 4, 1)
	cfg.Timeout = 80 * time.Millisecond

	res, err := NewRunner(cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range res.Records {
		if rec.Failure != FailureTimeout {
			t.Errorf("(%d,%d) failure = %s", rec.Window, rec.Index, rec.Failure)
			continue
		}
		if rec.Elapsed != cfg.Timeout {
			t.Errorf("timeout elapsed = %s, want %s", rec.Elapsed, cfg.Timeout)
		}
	}
}

func TestRun_Cancel(t *testing.T) {
	server := okServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	res, err := NewRunner(runConfig(server.URL, 2, 5)).Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if res.Expected != 10 {
		t.Errorf("expected = %d", res.Expected)
	}
	if n := len(res.Records); n == 0 || n >= 10 {
		t.Errorf("got %d records after cancel", n)
	}
}

func TestRun_InterruptTagsInFlightAsCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(250*time.Millisecond, cancel)

	res, err := NewRunner(runConfig(server.URL, 2, 3)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.Records) == 0 {
		t.Fatal("expected the first request to have launched")
	}
	for _, rec := range res.Records {
		if rec.Failure != FailureCancelled {
			t.Errorf("(%d,%d) failure = %s (%s), want cancelled", rec.Window, rec.Index, rec.Failure, rec.Err)
		}
	}
}

func TestRun_MaxInFlight(t *testing.T) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(150 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
	}))
	defer server.Close()

	cfg := runConfig(server.URL, 10, 1)
	cfg.MaxInFlight = 2

	res, err := NewRunner(cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 10 {
		t.Fatalf("got %d records", len(res.Records))
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds ceiling 2", peak)
	}
}
