// Package prom exports store events as Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cachekit"
)

// Hooks counts events. Keys are never used as label values.
type Hooks struct {
	lookups      *prometheus.CounterVec
	codecErrors  prometheus.Counter
	setsRejected prometheus.Counter
	connectFails *prometheus.CounterVec
	nonAtomic    prometheus.Counter
	flushes      *prometheus.CounterVec
}

var _ cachekit.Hooks = (*Hooks)(nil)

// New registers the counters on reg under namespace (e.g. "app").
func New(reg prometheus.Registerer, namespace string) *Hooks {
	h := &Hooks{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cachekit_lookups_total",
			Help:      "Backend reads by result",
		}, []string{"result"}),

		codecErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cachekit_codec_errors_total",
			Help:      "Values that could not be packed or unpacked",
		}),

		setsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cachekit_sets_rejected_total",
			Help:      "Writes dropped by the backend under pressure",
		}),

		connectFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cachekit_connect_failures_total",
			Help:      "Failed backend connection attempts",
		}, []string{"backend"}),

		nonAtomic: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cachekit_non_atomic_counter_updates_total",
			Help:      "Counter updates done as read-modify-write",
		}),

		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cachekit_flushes_total",
			Help:      "Whole-backend flushes",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		h.lookups,
		h.codecErrors,
		h.setsRejected,
		h.connectFails,
		h.nonAtomic,
		h.flushes,
	)
	return h
}

func (h *Hooks) Lookup(_ string, hit bool) {
	if hit {
		h.lookups.WithLabelValues("hit").Inc()
		return
	}
	h.lookups.WithLabelValues("miss").Inc()
}

func (h *Hooks) CodecFailure(string, error) { h.codecErrors.Inc() }
func (h *Hooks) BackendSetRejected(string)  { h.setsRejected.Inc() }
func (h *Hooks) NonAtomicIncrement(string)  { h.nonAtomic.Inc() }
func (h *Hooks) Flushed(backend string)     { h.flushes.WithLabelValues(backend).Inc() }

func (h *Hooks) ConnectFailed(backend string, _ error) {
	h.connectFails.WithLabelValues(backend).Inc()
}
