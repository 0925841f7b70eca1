package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"sitetester/internal/runner"
	"sitetester/internal/stats"
	"sitetester/internal/tui/styles"
)

const rule = "======================================================================"

// PrintReport renders rep as text. Totals and percentages always print;
// a failure kind line only appears when its count is non-zero.
func PrintReport(w io.Writer, rep *stats.Report) {
	fmt.Fprintf(w, "\n%s\n%s\n", styles.Section.Render("📊 LOAD TEST RESULTS"), rule)

	ts := rep.Timestamps
	if !ts.Start.IsZero() {
		fmt.Fprintf(w, "Started        : %s\n", ts.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "Finished       : %s\n", ts.End.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Total Duration : %s\n", ts.WallDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests       : %d\n", rep.Total)
	fmt.Fprintf(w, "Actual RPS     : %.2f\n", rep.Load.RPSAchieved)
	fmt.Fprintf(w, "Received       : %s\n", countPct(rep.Received, rep.Total))
	fmt.Fprintf(w, "Success        : %s\n", styles.Success.Render(countPct(rep.Success, rep.Total)))

	failPct := pct(rep.Failures.All, rep.Total)
	fmt.Fprintf(w, "Failures       : %s\n", styles.Rate(failPct).Render(countPct(rep.Failures.All, rep.Total)))
	for _, kind := range runner.FailureKinds {
		if n := rep.Failures.ByKind(kind); n > 0 {
			fmt.Fprintf(w, "   %-11s : %s\n", failureLabel(kind), countPct(n, rep.Total))
		}
	}
	if rep.Cancelled > 0 {
		fmt.Fprintf(w, "Cancelled      : %s\n", styles.Warn.Render(fmt.Sprintf("%d (interrupted, not counted)", rep.Cancelled)))
	}

	l := rep.Latency
	fmt.Fprintf(w, "\n%s\n", styles.Section.Render("⏱️  RESPONSE TIMES (ms) [all requests]"))
	fmt.Fprintf(w, "   Min    : %.2f\n", msec(l.Min))
	fmt.Fprintf(w, "   Mean   : %.2f\n", msec(l.Mean))
	fmt.Fprintf(w, "   Median : %.2f\n", msec(l.Median))
	fmt.Fprintf(w, "   P75    : %.2f\n", msec(l.P75))
	fmt.Fprintf(w, "   P90    : %.2f\n", msec(l.P90))
	fmt.Fprintf(w, "   P95    : %.2f\n", msec(l.P95))
	fmt.Fprintf(w, "   P99    : %.2f\n", msec(l.P99))
	fmt.Fprintf(w, "   Max    : %.2f\n", msec(l.Max))

	fmt.Fprintf(w, "\n%s\n", styles.Section.Render("📶 HISTOGRAM [received responses]"))
	peak := 0
	for _, b := range l.Histogram {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range l.Histogram {
		fmt.Fprintf(w, "   %-10s : %6d %s\n", b.Label, b.Count, bar(b.Count, peak, 30))
	}

	fmt.Fprintf(w, "\n%s\n", styles.Section.Render("🔢 STATUS CODES"))
	for digit := 1; digit <= 5; digit++ {
		fmt.Fprintf(w, "   %dxx : %d\n", digit, rep.Status.Class(digit))
	}
	for _, cc := range rep.Status.Codes {
		fmt.Fprintf(w, "   %d %s : %d\n", cc.Code, cc.Reason, cc.Count)
	}

	n := rep.Network
	fmt.Fprintf(w, "\n%s\n", styles.Section.Render("🌐 NETWORK"))
	fmt.Fprintf(w, "   Mean download size : %.4f MB\n", n.MeanDownloadSizeMB)
	fmt.Fprintf(w, "   Download speed     : %.4f MB/s\n", n.DownloadSpeedMBps)
	fmt.Fprintf(w, "   Redirects (last)   : %d\n", n.LastRedirects)
	fmt.Fprintf(w, "   Cached responses   : %d\n", n.Cached)
	fmt.Fprintf(w, "   Mean TTFB          : %.2f ms\n", msec(n.MeanTTFB))
	fmt.Fprintf(w, "   Mean connect time  : %.2f ms\n", msec(n.MeanConnect))
	fmt.Fprintf(w, "%s\n", rule)
}

func failureLabel(k runner.FailureKind) string {
	switch k {
	case runner.FailureTimeout:
		return "Timeout"
	case runner.FailureConnection:
		return "Connection"
	case runner.FailureHTTP:
		return "HTTP"
	case runner.FailureSSL:
		return "SSL"
	case runner.FailureRedirect:
		return "Redirects"
	default:
		return "Other"
	}
}

func countPct(n, total int) string {
	return fmt.Sprintf("%d (%.2f%%)", n, pct(n, total))
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func msec(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func bar(n, peak, width int) string {
	if peak == 0 {
		return ""
	}
	return strings.Repeat("█", n*width/peak)
}
