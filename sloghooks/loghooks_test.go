package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestKeysAreRedacted(t *testing.T) {
	h, buf := newBufHooks(Options{})
	h.CodecFailure("app:user:secret-token", errors.New("corrupt"))
	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Fatalf("raw key leaked: %s", out)
	}
	if !strings.Contains(out, "cachekit.codec_failure") {
		t.Fatalf("missing event name: %s", out)
	}
}

func TestCustomRedactor(t *testing.T) {
	h, buf := newBufHooks(Options{Redact: func(string) string { return "REDACTED" }})
	h.BackendSetRejected("k")
	if !strings.Contains(buf.String(), "key=REDACTED") {
		t.Fatalf("custom redactor not used: %s", buf.String())
	}
}

func TestLookupSampling(t *testing.T) {
	h, buf := newBufHooks(Options{LookupEvery: 3})
	for i := 0; i < 9; i++ {
		h.Lookup("k", true)
	}
	if n := strings.Count(buf.String(), "cachekit.lookup"); n != 3 {
		t.Fatalf("logged %d lookups, want 3", n)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	h.Lookup("k", false)
	h.ConnectFailed("redis", errors.New("x"))
	h.Flushed("redis")
	h.NonAtomicIncrement("k")
}
