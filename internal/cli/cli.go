package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"sitetester/internal/config"
	"sitetester/internal/export"
	"sitetester/internal/logging"
	"sitetester/internal/runner"
	"sitetester/internal/stats"
)

// Start runs a load test without the TUI, drawing a progress line on out
// until every request has finished. The report is returned even when the
// run was cancelled, together with the cancellation error.
func Start(ctx context.Context, cfg config.Config, out io.Writer) (*stats.Report, error) {
	printHeader(out, cfg)

	live := stats.NewLive()
	r := runner.NewRunner(cfg, runner.WithObserver(live))

	type outcome struct {
		res runner.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Run(ctx)
		done <- outcome{res, err}
	}()

	startTime := time.Now()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	totalDuration := cfg.RunDuration()

	var o outcome
loop:
	for {
		select {
		case o = <-done:
			break loop
		case <-ticker.C:
			printProgress(out, live.Snapshot(r.Inflight()), time.Since(startTime), totalDuration)
		}
	}
	printProgress(out, live.Snapshot(0), time.Since(startTime), totalDuration)
	fmt.Fprintln(out)

	if len(o.res.Records) == 0 {
		if o.err != nil {
			return nil, o.err
		}
		return nil, stats.ErrEmptySample
	}

	rep, err := stats.Aggregate(o.res)
	if err != nil {
		// Every launched request was cut off by the interrupt.
		if o.err != nil {
			return nil, o.err
		}
		return nil, err
	}
	PrintReport(out, rep)

	if err := SaveReports(out, cfg.OutPrefix, o.res, rep); err != nil {
		return rep, err
	}
	return rep, o.err
}

func printHeader(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "\n🚀 STARTING SITETESTER LOAD TEST\n")
	fmt.Fprintf(w, "%s\n", rule)
	target, err := cfg.RequestURL()
	if err != nil {
		target = cfg.URL
	}
	fmt.Fprintf(w, "Target URL : %s\n", target)
	fmt.Fprintf(w, "RPS        : %d\n", cfg.RPS)
	fmt.Fprintf(w, "Duration   : %ds (%d requests)\n", cfg.Duration, cfg.Total())
	fmt.Fprintf(w, "Timeout    : %s\n", cfg.Timeout)
	if cfg.MaxInFlight > 0 {
		fmt.Fprintf(w, "In-flight  : max %d\n", cfg.MaxInFlight)
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}

func printProgress(w io.Writer, snap stats.Snapshot, elapsed, total time.Duration) {
	pct := 1.0
	if total > 0 {
		pct = elapsed.Seconds() / total.Seconds()
	}
	if pct > 1.0 {
		pct = 1.0
	}
	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(snap.Requests) / elapsed.Seconds()
	}

	if elapsed >= total && snap.Inflight > 0 {
		fmt.Fprintf(w, "\r%s %3.0f%% | %s/%s | Draining: %d requests...                ",
			progressBar(1.0, 20), 100.0,
			elapsed.Round(time.Second), total,
			snap.Inflight)
		return
	}
	fmt.Fprintf(w, "\r%s %3.0f%% | %s/%s | Inf: %3d | RPS: %.1f | OK: %d | Err: %d",
		progressBar(pct, 20), pct*100,
		elapsed.Round(time.Second), total,
		snap.Inflight,
		rps,
		snap.Success,
		snap.Fail,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// SaveReports writes <prefix>.csv and <prefix>_report.json. An empty prefix
// disables export.
func SaveReports(w io.Writer, prefix string, res runner.Result, rep *stats.Report) error {
	if prefix == "" {
		return nil
	}

	csvPath, jsonPath := export.Files(prefix)
	fmt.Fprintf(w, "\n💾 Generating reports with prefix: %s\n", prefix)
	if err := export.ExportCSV(res.Records, csvPath); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	if err := export.ExportJSON(rep, jsonPath); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	logging.Info("reports written", zap.String("csv", csvPath), zap.String("json", jsonPath))
	fmt.Fprintf(w, "✅ Reports saved to %s and %s\n", csvPath, jsonPath)
	return nil
}
