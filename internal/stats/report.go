package stats

import (
	"time"

	"sitetester/internal/runner"
)

// Report is the immutable aggregate of one run. Received counts every
// response, Success only those below 400, so Success + Failures.All equals
// Total. Requests cut off by an interrupt are counted in Cancelled and left
// out of Total and every other figure.
type Report struct {
	Total      int        `json:"total"`
	Timestamps Timestamps `json:"timestamps"`
	Load       Load       `json:"load"`
	Received   int        `json:"received"`
	Success    int        `json:"success"`
	Cancelled  int        `json:"cancelled"`
	Failures   Failures   `json:"failure"`
	Latency    Latency    `json:"time"`
	Status     Status     `json:"status"`
	Network    Network    `json:"network"`
}

type Timestamps struct {
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	WallDuration time.Duration `json:"duration"`
}

// Load is the rate the run actually sustained.
type Load struct {
	RPSAchieved float64 `json:"rps_achieved"`
}

// Failures counts failed requests per kind. All includes HTTP errors,
// which are received responses with a status of 400 or more.
type Failures struct {
	Timeout    int `json:"timeout"`
	Connection int `json:"connection"`
	HTTP       int `json:"http"`
	SSL        int `json:"ssl"`
	Redirect   int `json:"redirects"`
	Other      int `json:"other"`
	All        int `json:"all"`
}

// ByKind returns the counter for k.
func (f Failures) ByKind(k runner.FailureKind) int {
	switch k {
	case runner.FailureTimeout:
		return f.Timeout
	case runner.FailureConnection:
		return f.Connection
	case runner.FailureHTTP:
		return f.HTTP
	case runner.FailureSSL:
		return f.SSL
	case runner.FailureRedirect:
		return f.Redirect
	case runner.FailureOther:
		return f.Other
	}
	return 0
}

func (f *Failures) add(k runner.FailureKind) {
	switch k {
	case runner.FailureTimeout:
		f.Timeout++
	case runner.FailureConnection:
		f.Connection++
	case runner.FailureHTTP:
		f.HTTP++
	case runner.FailureSSL:
		f.SSL++
	case runner.FailureRedirect:
		f.Redirect++
	default:
		f.Other++
	}
	f.All++
}

// Latency is computed over every record, failures included. The histogram
// counts successful records only.
type Latency struct {
	Min       time.Duration `json:"min"`
	Max       time.Duration `json:"max"`
	Mean      time.Duration `json:"mean"`
	Median    time.Duration `json:"median"`
	P75       time.Duration `json:"p75"`
	P90       time.Duration `json:"p90"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
	Histogram []Bucket      `json:"histogram"`
}

// Bucket covers [Lower, Upper). Upper is zero for the open last bucket.
type Bucket struct {
	Label string        `json:"label"`
	Lower time.Duration `json:"lower"`
	Upper time.Duration `json:"upper,omitempty"`
	Count int           `json:"count"`
}

// Status holds counts per status class (1xx..5xx) and per exact code.
type Status struct {
	Classes [5]int      `json:"classes"`
	Codes   []CodeCount `json:"codes"`
}

// Class returns the count for a class digit 1..5.
func (s Status) Class(digit int) int {
	if digit < 1 || digit > len(s.Classes) {
		return 0
	}
	return s.Classes[digit-1]
}

type CodeCount struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Network figures cover received responses. MeanConnect averages only the
// responses that dialled a new connection.
type Network struct {
	MeanDownloadSizeMB float64       `json:"download_size_mb"`
	DownloadSpeedMBps  float64       `json:"download_speed_mbps"`
	LastRedirects      int           `json:"redirects"`
	Cached             int           `json:"cached"`
	MeanTTFB           time.Duration `json:"ttfb"`
	MeanConnect        time.Duration `json:"connect_time"`
}
