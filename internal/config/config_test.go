package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("url", "u", "", "")
	fs.IntP("rps", "r", DefaultRPS, "")
	fs.IntP("duration", "d", DefaultDuration, "")
	fs.IntP("timeout", "t", DefaultTimeout, "")
	fs.StringP("payload", "p", "", "")
	fs.Int("max-inflight", 0, "")
	fs.StringP("out", "o", "", "")
	fs.String("log-level", DefaultLogLevel, "")
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.URL = "https://example.com"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing url", func(c *Config) { c.URL = "  " }, ErrMissingURL},
		{"bad scheme", func(c *Config) { c.URL = "ftp://example.com" }, ErrInvalidURL},
		{"no host", func(c *Config) { c.URL = "http://" }, ErrInvalidURL},
		{"zero rps", func(c *Config) { c.RPS = 0 }, ErrInvalidRPS},
		{"zero duration", func(c *Config) { c.Duration = 0 }, ErrInvalidDuration},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative ceiling", func(c *Config) { c.MaxInFlight = -1 }, ErrInvalidMaxInFlight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequestURL(t *testing.T) {
	cfg := Default()
	cfg.URL = "http://example.com/search?lang=en"
	cfg.Payload = url.Values{"q": {"go"}, "page": {"2"}}

	got, err := cfg.RequestURL()
	if err != nil {
		t.Fatalf("RequestURL: %v", err)
	}
	if got != "http://example.com/search?lang=en&page=2&q=go" {
		t.Errorf("unexpected request URL %q", got)
	}

	cfg.Payload = nil
	got, _ = cfg.RequestURL()
	if got != cfg.URL {
		t.Errorf("empty payload should keep URL untouched, got %q", got)
	}
}

func TestTotal(t *testing.T) {
	cfg := Config{RPS: 7, Duration: 3}
	if cfg.Total() != 21 {
		t.Errorf("expected 21, got %d", cfg.Total())
	}
	if cfg.RunDuration() != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.RunDuration())
	}
}

func TestLoad_FlagsOnly(t *testing.T) {
	fs := testFlags()
	if err := fs.Parse([]string{"-u", "http://localhost:8080/fast", "-r", "20", "-p", "a=1&b=x"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "http://localhost:8080/fast" {
		t.Errorf("url = %q", cfg.URL)
	}
	if cfg.RPS != 20 || cfg.Duration != DefaultDuration {
		t.Errorf("rps/duration = %d/%d", cfg.RPS, cfg.Duration)
	}
	if cfg.Timeout != DefaultTimeout*time.Second {
		t.Errorf("timeout = %s", cfg.Timeout)
	}
	if cfg.Payload.Get("a") != "1" || cfg.Payload.Get("b") != "x" {
		t.Errorf("payload = %v", cfg.Payload)
	}
}

func TestLoad_MissingURL(t *testing.T) {
	fs := testFlags()
	_ = fs.Parse(nil)

	_, err := Load("", fs)
	if !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `{
		"url": "https://example.com/api",
		"rps": 10,
		"duration": 2,
		"timeout": 3,
		"payload": {"userId": "abc", "limit": 50, "tags": ["x", "y"]}
	}`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPS != 10 || cfg.Duration != 2 || cfg.Timeout != 3*time.Second {
		t.Errorf("unexpected cfg %+v", cfg)
	}
	if cfg.Payload.Get("userId") != "abc" {
		t.Errorf("payload key case not preserved: %v", cfg.Payload)
	}
	if cfg.Payload.Get("limit") != "50" {
		t.Errorf("limit = %q", cfg.Payload.Get("limit"))
	}
	if len(cfg.Payload["tags"]) != 2 {
		t.Errorf("tags = %v", cfg.Payload["tags"])
	}
}

func TestLoad_FileStringPayloadAndFlagOverride(t *testing.T) {
	path := writeConfig(t, `{"url": "http://example.com", "rps": 10, "payload": "q=load"}`)

	fs := testFlags()
	if err := fs.Parse([]string{"--rps", "3"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPS != 3 {
		t.Errorf("flag should override file, rps = %d", cfg.RPS)
	}
	if cfg.Payload.Get("q") != "load" {
		t.Errorf("payload = %v", cfg.Payload)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	if !errors.Is(err, ErrReadConfig) {
		t.Errorf("expected ErrReadConfig, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}

	path := writeConfig(t, `{"url": "http://example.com",`)
	_, err = Load(path, nil)
	if !errors.Is(err, ErrParseConfig) {
		t.Errorf("expected ErrParseConfig, got %v", err)
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    url.Values
		wantErr bool
	}{
		{"nil", nil, url.Values{}, false},
		{"empty string", "", url.Values{}, false},
		{"query string", "?a=1&a=2&b=3", url.Values{"a": {"1", "2"}, "b": {"3"}}, false},
		{"bad escape", "a=%zz", nil, true},
		{"object", map[string]any{"flag": true, "n": nil}, url.Values{"flag": {"true"}, "n": {""}}, false},
		{"nested", map[string]any{"o": map[string]any{"x": 1}}, nil, true},
		{"number", 42, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("expected ErrInvalidPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Encode() != tt.want.Encode() {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
