package cachekit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/unkn0wn-root/cachekit/backend"
)

// Config is the flat, loader-agnostic settings shape (host, port, expire,
// timeout, persistent, prefix). Reading it from files, env or flags is left to
// the application.
type Config struct {
	Hosts      []string
	Ports      []int // fewer ports than hosts => the first port is reused
	Expire     time.Duration
	Timeout    time.Duration
	Persistent bool
	Prefix     string
}

func DefaultConfig() Config {
	return Config{Hosts: []string{backend.DefaultHost}, Persistent: true}
}

// ConfigFromMap reads the keys host, port, expire, timeout, persistent and
// prefix over DefaultConfig. host and port take lists or comma-separated
// strings; expire and timeout take integer seconds or duration strings such
// as "90s" or "1d". Unknown keys are ignored.
func ConfigFromMap(m map[string]any) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if v, ok := m["host"]; ok {
		if cfg.Hosts, err = stringList(v); err != nil {
			return cfg, &ConfigError{Field: "host", Err: err}
		}
	}
	if v, ok := m["port"]; ok {
		if cfg.Ports, err = intList(v); err != nil {
			return cfg, &ConfigError{Field: "port", Err: err}
		}
	}
	if v, ok := m["expire"]; ok {
		if cfg.Expire, err = duration(v); err != nil {
			return cfg, &ConfigError{Field: "expire", Err: err}
		}
	}
	if v, ok := m["timeout"]; ok {
		if cfg.Timeout, err = duration(v); err != nil {
			return cfg, &ConfigError{Field: "timeout", Err: err}
		}
	}
	if v, ok := m["persistent"]; ok {
		switch x := v.(type) {
		case bool:
			cfg.Persistent = x
		case string:
			if cfg.Persistent, err = strconv.ParseBool(strings.TrimSpace(x)); err != nil {
				return cfg, &ConfigError{Field: "persistent", Err: err}
			}
		default:
			return cfg, &ConfigError{Field: "persistent", Err: fmt.Errorf("unsupported type %T", v)}
		}
	}
	if v, ok := m["prefix"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return cfg, &ConfigError{Field: "prefix", Err: fmt.Errorf("unsupported type %T", v)}
		}
		cfg.Prefix = s
	}
	return cfg, nil
}

// BackendOptions maps the connection settings for network backends.
func (c Config) BackendOptions() backend.Options {
	return backend.Options{
		Hosts:         c.Hosts,
		Ports:         c.Ports,
		Timeout:       c.Timeout,
		NonPersistent: !c.Persistent,
	}
}

// StoreOptions maps the store settings around b.
func (c Config) StoreOptions(b backend.Backend) Options {
	return Options{Backend: b, Prefix: c.Prefix, DefaultTTL: c.Expire}
}

func stringList(v any) ([]string, error) {
	var raw []string
	switch x := v.(type) {
	case string:
		raw = strings.Split(x, ",")
	case []string:
		raw = x
	case []any:
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported element type %T", e)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func intList(v any) ([]int, error) {
	switch x := v.(type) {
	case []int:
		return x, nil
	case []any:
		out := make([]int, 0, len(x))
		for _, e := range x {
			n, err := toInt(e)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case string:
		var out []int
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64: // JSON numbers
		if x != float64(int(x)) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

// duration accepts a time.Duration, integer seconds, or a duration string.
func duration(v any) (time.Duration, error) {
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			d = time.Duration(n) * time.Second
			break
		}
		parsed, err := str2duration.ParseDuration(s)
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		n, err := toInt(v)
		if err != nil {
			return 0, err
		}
		d = time.Duration(n) * time.Second
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}
