package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cachekit"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LookupEvery    uint64
	NonAtomicEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lookupCtr    atomic.Uint64
	nonAtomicCtr atomic.Uint64
}

var _ cachekit.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(storageKey string, hit bool) {
	if h.l == nil || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug("cachekit.lookup",
		"key", h.redact(storageKey),
		"hit", hit)
}

func (h *Hooks) CodecFailure(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachekit.codec_failure",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) BackendSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachekit.backend_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) ConnectFailed(backend string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cachekit.connect_failed",
		"backend", backend,
		"err", err)
}

func (h *Hooks) NonAtomicIncrement(storageKey string) {
	if h.l == nil || !sample(h.opts.NonAtomicEvery, &h.nonAtomicCtr) {
		return
	}
	h.l.Info("cachekit.non_atomic_increment",
		"key", h.redact(storageKey))
}

func (h *Hooks) Flushed(backend string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachekit.flushed",
		"backend", backend)
}
