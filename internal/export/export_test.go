package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sitetester/internal/runner"
	"sitetester/internal/stats"
)

func sampleRecords() []runner.RequestRecord {
	start := time.UnixMilli(1700000000000)
	return []runner.RequestRecord{
		{
			ID: "a", Window: 0, Index: 0, Start: start, Elapsed: 12500 * time.Microsecond,
			Response: &runner.ResponseMeta{StatusCode: 200, Reason: "OK", ContentLength: 512, Redirects: 1, CacheHit: true, TTFB: 8 * time.Millisecond, Connect: 1500 * time.Microsecond},
		},
		{
			ID: "b", Window: 0, Index: 1, Start: start.Add(500 * time.Millisecond), Elapsed: 2 * time.Second,
			Failure: runner.FailureTimeout, Err: "context deadline exceeded",
		},
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	if err := ExportCSV(sampleRecords(), path); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(rows[0]) != len(CSVHeader) {
		t.Fatalf("header has %d columns, want %d", len(rows[0]), len(CSVHeader))
	}

	ok := rows[1]
	want := []string{"a", "0", "0", "1700000000000", "12.500", "200", "OK", "true", "", "", "512", "1", "true", "8.000", "1.500"}
	for i := range want {
		if ok[i] != want[i] {
			t.Errorf("row 1 col %s = %q, want %q", CSVHeader[i], ok[i], want[i])
		}
	}

	failed := rows[2]
	if failed[5] != "" || failed[7] != "false" || failed[8] != "timeout" || failed[9] != "context deadline exceeded" {
		t.Errorf("unexpected failed row: %v", failed)
	}
}

func TestExportJSON(t *testing.T) {
	rep, err := stats.Aggregate(runner.Result{
		Expected: 2,
		Started:  time.UnixMilli(1700000000000),
		Finished: time.UnixMilli(1700000002000),
		Records:  sampleRecords(),
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "run_report.json")
	if err := ExportJSON(rep, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got stats.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 2 || got.Success != 1 || got.Failures.Timeout != 1 || got.Failures.All != 1 {
		t.Errorf("decoded report mismatch: %+v", got)
	}
	if got.Timestamps.WallDuration != 2*time.Second {
		t.Errorf("wall duration = %s, want 2s", got.Timestamps.WallDuration)
	}
	if got.Network.Cached != 1 {
		t.Errorf("cached = %d, want 1", got.Network.Cached)
	}
}

func TestExportCSVBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "run.csv")
	if err := ExportCSV(nil, path); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFiles(t *testing.T) {
	c, j := Files("out/run")
	if c != "out/run.csv" || j != "out/run_report.json" {
		t.Errorf("Files = %q, %q", c, j)
	}
}
