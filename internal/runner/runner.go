package runner

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"sitetester/internal/config"
	"sitetester/internal/logging"
)

// Runner dispatches Config.RPS requests in each one-second window for
// Config.Duration windows. Every request runs in its own goroutine.
type Runner struct {
	Cfg    config.Config
	Client *http.Client

	observer Observer
	log      *zap.Logger
	sem      *semaphore.Weighted

	inflight int64
}

type Option func(*Runner)

// WithObserver registers an observer for completed records.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithClient replaces the default shared client.
func WithClient(c *http.Client) Option {
	return func(r *Runner) { r.Client = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func NewRunner(cfg config.Config, opts ...Option) *Runner {
	r := &Runner{
		Cfg: cfg,
		log: logging.Global(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Client == nil {
		r.Client = NewClient(cfg)
	}
	if cfg.MaxInFlight > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	r.log = r.log.With(zap.String("component", "runner"))
	return r
}

// Run executes the whole schedule and waits for every request. Records are
// returned in start order. If ctx is cancelled, scheduling stops, in-flight
// requests are aborted and the records launched so far are returned with
// ctx.Err().
func (r *Runner) Run(ctx context.Context) (Result, error) {
	rps, windows := r.Cfg.RPS, r.Cfg.Duration
	records := make([]RequestRecord, rps*windows)
	res := Result{Expected: len(records)}

	r.log.Info("run started",
		zap.String("url", r.Cfg.URL),
		zap.Int("rps", rps),
		zap.Int("duration", windows),
		zap.Duration("timeout", r.Cfg.Timeout),
		zap.Int("max_inflight", r.Cfg.MaxInFlight),
	)

	var wg sync.WaitGroup
	launched := 0
	res.Started = time.Now()

	err := r.schedule(ctx, res.Started, func(w, i int) {
		slot := w*rps + i
		launched = slot + 1

		wg.Add(1)
		atomic.AddInt64(&r.inflight, 1)
		go func() {
			defer wg.Done()
			defer atomic.AddInt64(&r.inflight, -1)
			if r.sem != nil {
				defer r.sem.Release(1)
			}

			rec := Execute(ctx, r.Client, r.Cfg)
			rec.Window, rec.Index = w, i
			records[slot] = rec
			if r.observer != nil {
				r.observer.Observe(rec)
			}
		}()
	})

	wg.Wait()
	res.Finished = time.Now()
	res.Records = records[:launched]

	if err != nil {
		r.log.Warn("run interrupted",
			zap.Int("launched", launched),
			zap.Int("expected", res.Expected),
			zap.Error(err),
		)
		return res, err
	}
	r.log.Info("run finished",
		zap.Int("requests", len(res.Records)),
		zap.Duration("wall", res.Finished.Sub(res.Started)),
	)
	return res, nil
}

// schedule calls launch for window w, index i no earlier than
// start + w*1s + i/rps. It never waits on launched requests, except for a
// free slot when a concurrency ceiling is configured.
func (r *Runner) schedule(ctx context.Context, start time.Time, launch func(w, i int)) error {
	rps := r.Cfg.RPS
	for w := 0; w < r.Cfg.Duration; w++ {
		windowStart := start.Add(time.Duration(w) * time.Second)
		for i := 0; i < rps; i++ {
			target := windowStart.Add(time.Duration(i) * time.Second / time.Duration(rps))
			if err := sleepUntil(ctx, target); err != nil {
				return err
			}

			if r.sem != nil {
				if err := r.sem.Acquire(ctx, 1); err != nil {
					return err
				}
			}

			if lag := time.Since(target); lag > 100*time.Millisecond {
				r.log.Debug("launch behind schedule",
					zap.Int("window", w),
					zap.Int("index", i),
					zap.Duration("lag", lag),
				)
			}
			launch(w, i)
		}
	}
	return nil
}

func sleepUntil(ctx context.Context, target time.Time) error {
	wait := time.Until(target)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Inflight returns the number of requests currently outstanding.
func (r *Runner) Inflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}
