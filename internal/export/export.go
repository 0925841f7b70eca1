package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"sitetester/internal/runner"
	"sitetester/internal/stats"
)

// CSVHeader is the column layout written by ExportCSV.
var CSVHeader = []string{
	"id", "window", "index", "timeStamp", "elapsed",
	"responseCode", "responseMessage", "success", "failure", "failureMessage",
	"bytes", "redirects", "cached", "ttfb", "connect",
}

// ExportCSV writes one row per record. Timestamps are Unix ms; elapsed, ttfb
// and connect are ms with microsecond precision.
func ExportCSV(records []runner.RequestRecord, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return err
	}

	for _, rec := range records {
		code, reason, size, redirects, cached := "", "", "0", "0", "false"
		var ttfb, connect time.Duration
		if rec.Response != nil {
			code = strconv.Itoa(rec.Response.StatusCode)
			reason = rec.Response.Reason
			size = strconv.FormatInt(rec.Response.ContentLength, 10)
			redirects = strconv.Itoa(rec.Response.Redirects)
			cached = strconv.FormatBool(rec.Response.CacheHit)
			ttfb, connect = rec.Response.TTFB, rec.Response.Connect
		}

		failure := ""
		if rec.Failure != 0 {
			failure = rec.Failure.String()
		}

		row := []string{
			rec.ID,
			strconv.Itoa(rec.Window),
			strconv.Itoa(rec.Index),
			strconv.FormatInt(rec.Start.UnixMilli(), 10),
			millis(rec.Elapsed),
			code,
			reason,
			strconv.FormatBool(rec.Succeeded()),
			failure,
			rec.Err,
			size,
			redirects,
			cached,
			millis(ttfb),
			millis(connect),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Microseconds())/1000)
}

// ExportJSON writes the report as indented JSON.
func ExportJSON(rep *stats.Report, filename string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Files returns the CSV and JSON paths derived from an output prefix.
func Files(prefix string) (csvPath, jsonPath string) {
	return prefix + ".csv", prefix + "_report.json"
}
