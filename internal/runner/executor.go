package runner

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitetester/internal/config"
)

const (
	// MaxRedirects bounds a redirect chain before it is reported as a failure.
	MaxRedirects = 30

	// CacheHeader carries the intermediary cache verdict.
	CacheHeader = "X-Cache"

	RequestIDHeader = "X-Request-ID"
)

// NewClient builds the HTTP client shared by every request of a run.
func NewClient(cfg config.Config) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     t,
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return &RedirectError{Redirects: len(via), Reason: "too many redirects"}
	}
	return nil
}

// Execute sends one GET for cfg and always returns a well-formed record.
// Transport failures are classified, never returned.
func Execute(ctx context.Context, client *http.Client, cfg config.Config) RequestRecord {
	rec := RequestRecord{ID: uuid.New().String()}

	target, err := cfg.RequestURL()
	if err != nil {
		rec.Start = time.Now()
		return failed(rec, cfg, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		rec.Start = time.Now()
		return failed(rec, cfg, err)
	}
	req.Header.Set(RequestIDHeader, rec.ID)

	var tm timing
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), tm.trace()))

	rec.Start = time.Now()
	tm.start = rec.Start
	resp, err := client.Do(req)
	if err != nil {
		return failed(rec, cfg, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return failed(rec, cfg, err)
	}
	rec.Elapsed = time.Since(rec.Start)

	rec.Response = &ResponseMeta{
		StatusCode:    resp.StatusCode,
		Reason:        reasonPhrase(resp),
		ContentLength: n,
		Redirects:     redirectCount(resp),
		CacheHit:      strings.Contains(strings.ToLower(resp.Header.Get(CacheHeader)), "from-cache"),
	}
	rec.Response.TTFB, rec.Response.Connect = tm.result()
	return rec
}

// timing collects connection and first-byte times for the last hop of a
// request. Dial callbacks may run on several goroutines at once.
type timing struct {
	mu        sync.Mutex
	start     time.Time
	dialStart time.Time
	connect   time.Duration
	ttfb      time.Duration
}

func (tm *timing) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) {
			tm.mu.Lock()
			tm.dialStart, tm.connect = time.Time{}, 0
			tm.mu.Unlock()
		},
		ConnectStart: func(string, string) {
			tm.mu.Lock()
			if tm.dialStart.IsZero() {
				tm.dialStart = time.Now()
			}
			tm.mu.Unlock()
		},
		ConnectDone: func(_, _ string, err error) {
			tm.mu.Lock()
			if err == nil && tm.connect == 0 && !tm.dialStart.IsZero() {
				tm.connect = time.Since(tm.dialStart)
			}
			tm.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			tm.mu.Lock()
			tm.ttfb = time.Since(tm.start)
			tm.mu.Unlock()
		},
	}
}

func (tm *timing) result() (ttfb, connect time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.ttfb, tm.connect
}

func failed(rec RequestRecord, cfg config.Config, err error) RequestRecord {
	rec.Elapsed = time.Since(rec.Start)
	rec.Failure = Classify(err)
	rec.Err = err.Error()
	if rec.Failure == FailureTimeout {
		rec.Elapsed = cfg.Timeout
	}
	return rec
}

// reasonPhrase extracts the phrase the server sent, falling back to the
// standard text when the status line had none.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		return http.StatusText(resp.StatusCode)
	}
	return reason
}

// redirectCount walks back from the final request through the redirect
// responses that produced it.
func redirectCount(resp *http.Response) int {
	n := 0
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		n++
	}
	return n
}
