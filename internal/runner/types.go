package runner

import (
	"time"
)

// FailureKind classifies why a request did not produce a usable response.
// The zero value means no failure.
type FailureKind int

const (
	FailureTimeout FailureKind = iota + 1
	FailureConnection
	FailureSSL
	FailureRedirect
	FailureHTTP // assigned by the aggregator, never by the executor
	FailureOther
	// The run was interrupted while the request was in flight. Not a
	// failure of the target, so it is kept out of FailureKinds.
	FailureCancelled
)

// FailureKinds lists every kind in report order.
var FailureKinds = []FailureKind{
	FailureTimeout,
	FailureConnection,
	FailureHTTP,
	FailureSSL,
	FailureRedirect,
	FailureOther,
}

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureConnection:
		return "connection"
	case FailureSSL:
		return "ssl"
	case FailureRedirect:
		return "redirects"
	case FailureHTTP:
		return "http"
	case FailureOther:
		return "other"
	case FailureCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// MarshalText lets kinds appear by name in JSON exports.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ResponseMeta describes a response that was fully received.
type ResponseMeta struct {
	StatusCode    int    `json:"status_code"`
	Reason        string `json:"reason"`
	ContentLength int64  `json:"content_length"`
	Redirects     int    `json:"redirects"`
	CacheHit      bool   `json:"cache_hit"`

	// TTFB runs from request start to the first byte of the final response.
	// Connect is the dial time of the final hop, zero on a reused connection.
	TTFB    time.Duration `json:"ttfb"`
	Connect time.Duration `json:"connect_time"`
}

// RequestRecord is the immutable outcome of one dispatched request.
// Exactly one of Response and Failure is set.
type RequestRecord struct {
	ID      string        `json:"id"`
	Window  int           `json:"window"`
	Index   int           `json:"index"`
	Start   time.Time     `json:"start"`
	Elapsed time.Duration `json:"elapsed"`

	Response *ResponseMeta `json:"response,omitempty"`
	Failure  FailureKind   `json:"failure,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// Succeeded reports whether a response was received. HTTP error statuses
// still count as received.
func (r RequestRecord) Succeeded() bool {
	return r.Response != nil
}

// Result is everything a finished run hands to the aggregator.
type Result struct {
	Expected int
	Started  time.Time
	Finished time.Time
	Records  []RequestRecord
}

// Observer receives each record as soon as its request completes.
// It is called from many goroutines at once.
type Observer interface {
	Observe(RequestRecord)
}
