package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. SITETESTER_RPS.
const EnvPrefix = "SITETESTER"

// Keys shared by the JSON config file, the environment and viper.
const (
	KeyURL         = "url"
	KeyRPS         = "rps"
	KeyDuration    = "duration"
	KeyTimeout     = "timeout"
	KeyPayload     = "payload"
	KeyMaxInFlight = "max_inflight"
	KeyOut         = "out"
	KeyLogLevel    = "log_level"
)

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"url":          KeyURL,
	"rps":          KeyRPS,
	"duration":     KeyDuration,
	"timeout":      KeyTimeout,
	"payload":      KeyPayload,
	"max-inflight": KeyMaxInFlight,
	"out":          KeyOut,
	"log-level":    KeyLogLevel,
}

// Load resolves a Config. Precedence, highest first: flags the user set,
// SITETESTER_* environment variables, the JSON file at path (optional),
// defaults. The result is validated.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var filePayload json.RawMessage
	if path != "" {
		raw, err := readFile(v, path)
		if err != nil {
			return Config{}, err
		}
		filePayload = raw
	}

	cfg, err := resolve(v, fs, filePayload)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPS, DefaultRPS)
	v.SetDefault(KeyDuration, DefaultDuration)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyMaxInFlight, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// readFile feeds the JSON file into v and returns the raw payload value.
// The payload is decoded separately since viper lower-cases nested keys
// and query parameter names are case-sensitive.
func readFile(v *viper.Viper, path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
	}

	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseConfig, err)
	}

	var doc struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseConfig, err)
	}
	return doc.Payload, nil
}

func resolve(v *viper.Viper, fs *pflag.FlagSet, filePayload json.RawMessage) (Config, error) {
	cfg := Config{
		URL:         strings.TrimSpace(v.GetString(KeyURL)),
		RPS:         v.GetInt(KeyRPS),
		Duration:    v.GetInt(KeyDuration),
		Timeout:     time.Duration(v.GetFloat64(KeyTimeout) * float64(time.Second)),
		MaxInFlight: v.GetInt(KeyMaxInFlight),
		OutPrefix:   v.GetString(KeyOut),
		LogLevel:    v.GetString(KeyLogLevel),
	}

	var (
		payload url.Values
		err     error
	)
	_, fromEnv := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(KeyPayload))
	fromFlag := fs != nil && fs.Changed("payload")
	switch {
	case fromFlag || fromEnv || len(filePayload) == 0:
		payload, err = ParsePayload(v.GetString(KeyPayload))
	default:
		var raw any
		dec := json.NewDecoder(bytes.NewReader(filePayload))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		payload, err = ParsePayload(raw)
	}
	if err != nil {
		return Config{}, err
	}
	cfg.Payload = payload
	return cfg, nil
}

// ParsePayload converts a payload given as a query string ("a=1&b=2") or as
// a JSON object into query parameters. Object values may be scalars or lists.
func ParsePayload(raw any) (url.Values, error) {
	switch p := raw.(type) {
	case nil:
		return url.Values{}, nil
	case string:
		q := strings.TrimPrefix(strings.TrimSpace(p), "?")
		if q == "" {
			return url.Values{}, nil
		}
		values, err := url.ParseQuery(q)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return values, nil
	case map[string]string:
		values := url.Values{}
		for k, s := range p {
			values.Set(k, s)
		}
		return values, nil
	case map[string]any:
		values := url.Values{}
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch item := p[k].(type) {
			case []any:
				for _, elem := range item {
					values.Add(k, scalar(elem))
				}
			case map[string]any:
				return nil, fmt.Errorf("%w: nested object under %q", ErrInvalidPayload, k)
			default:
				values.Add(k, scalar(item))
			}
		}
		return values, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidPayload, raw)
	}
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
