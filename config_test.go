package cachekit

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestConfigFromMapDefaults(t *testing.T) {
	cfg, err := ConfigFromMap(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("got %+v", cfg)
	}
	opts := cfg.BackendOptions()
	if opts.NonPersistent {
		t.Fatalf("connections should persist by default")
	}
	if got := opts.Endpoints(11211); !reflect.DeepEqual(got, []string{"127.0.0.1:11211"}) {
		t.Fatalf("endpoints %v", got)
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{
		"host":       "cache-1, cache-2",
		"port":       []any{float64(11300)},
		"expire":     "1d",
		"timeout":    float64(2),
		"persistent": "false",
		"prefix":     "app:",
		"unknown":    struct{}{},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Hosts:      []string{"cache-1", "cache-2"},
		Ports:      []int{11300},
		Expire:     24 * time.Hour,
		Timeout:    2 * time.Second,
		Persistent: false,
		Prefix:     "app:",
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("got %+v want %+v", cfg, want)
	}
	if got := cfg.BackendOptions().Endpoints(11211); !reflect.DeepEqual(got, []string{"cache-1:11300", "cache-2:11300"}) {
		t.Fatalf("endpoints %v", got)
	}

	st := cfg.StoreOptions(nil)
	if st.Prefix != "app:" || st.DefaultTTL != 24*time.Hour {
		t.Fatalf("store options %+v", st)
	}
}

func TestConfigDurations(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
	}{
		{"90", 90 * time.Second},
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
		{60, time.Minute},
		{int64(5), 5 * time.Second},
		{3 * time.Second, 3 * time.Second},
	}
	for _, tc := range cases {
		cfg, err := ConfigFromMap(map[string]any{"expire": tc.in})
		if err != nil {
			t.Fatalf("%v: %v", tc.in, err)
		}
		if cfg.Expire != tc.want {
			t.Fatalf("%v: got %v want %v", tc.in, cfg.Expire, tc.want)
		}
	}
}

func TestConfigErrors(t *testing.T) {
	bad := []map[string]any{
		{"host": 42},
		{"port": "eleven"},
		{"port": 1.5},
		{"expire": "soon"},
		{"expire": -1},
		{"timeout": []int{1}},
		{"persistent": "maybe"},
		{"prefix": 7},
	}
	for _, m := range bad {
		_, err := ConfigFromMap(m)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("%v: expected *ConfigError, got %v", m, err)
		}
	}
}
