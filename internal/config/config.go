package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRPS      = 5
	DefaultDuration = 5 // seconds
	DefaultTimeout  = 5 // seconds
	DefaultLogLevel = "warn"
)

var (
	ErrMissingURL         = errors.New("URL not specified")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidRPS         = errors.New("rps must be at least 1")
	ErrInvalidDuration    = errors.New("duration must be at least 1 second")
	ErrInvalidTimeout     = errors.New("timeout must be positive")
	ErrInvalidMaxInFlight = errors.New("max-inflight cannot be negative")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrReadConfig         = errors.New("error opening file")
	ErrParseConfig        = errors.New("error parsing file")
)

// Config is the resolved, immutable configuration of one run.
type Config struct {
	URL      string
	RPS      int
	Duration int // seconds
	Timeout  time.Duration
	Payload  url.Values

	// MaxInFlight caps outstanding requests. Zero means unbounded.
	MaxInFlight int

	OutPrefix string
	LogLevel  string
}

// Default returns a Config carrying the documented defaults and no URL.
func Default() Config {
	return Config{
		RPS:      DefaultRPS,
		Duration: DefaultDuration,
		Timeout:  DefaultTimeout * time.Second,
		Payload:  url.Values{},
		LogLevel: DefaultLogLevel,
	}
}

// Validate checks the configuration before a run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if c.RPS < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRPS, c.RPS)
	}
	if c.Duration < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, c.Duration)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTimeout, c.Timeout)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxInFlight, c.MaxInFlight)
	}
	return nil
}

// Total is the number of requests the run dispatches.
func (c Config) Total() int {
	return c.RPS * c.Duration
}

// RunDuration returns the scheduling span as time.Duration.
func (c Config) RunDuration() time.Duration {
	return time.Duration(c.Duration) * time.Second
}

// RequestURL returns the target URL with the payload appended to its query.
func (c Config) RequestURL() (string, error) {
	if len(c.Payload) == 0 {
		return c.URL, nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	for k, vs := range c.Payload {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
