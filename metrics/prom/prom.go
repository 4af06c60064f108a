// Package prom exports fetchcache hook events as Prometheus metrics.
//
// Series are labelled by cache namespace and entry kind, taken from the
// storage key. User keys never become labels.
package prom

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	fc "github.com/unkn0wn-root/fetchcache"
	"github.com/unkn0wn-root/fetchcache/internal/keys"
)

type Options struct {
	// Namespace prefixes every metric name. Default "fetchcache".
	Namespace string
	// Buckets for the fetch duration histogram. Default prometheus.DefBuckets.
	Buckets []float64
}

type Hooks struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
	evictions *prometheus.CounterVec
	cold      *prometheus.CounterVec
}

var _ fc.Hooks = (*Hooks)(nil)

// New builds the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts Options) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "fetchcache"
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	h := &Hooks{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "fetch_started_total",
			Help: "Fetch requests started.",
		}, []string{"cache", "kind", "mode"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "fetch_completed_total",
			Help: "Fetch requests completed, by result.",
		}, []string{"cache", "kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "fetch_duration_seconds",
			Help:    "Duration of successful fetch requests, retries included.",
			Buckets: buckets,
		}, []string{"cache", "kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "retries_total",
			Help: "Retry attempts scheduled after a failed attempt.",
		}, []string{"cache", "kind"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "optimistic_rollbacks_total",
			Help: "Optimistic mutations rolled back.",
		}, []string{"cache"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "evictions_total",
			Help: "Entries removed by the retention sweeper.",
		}, []string{"cache", "demoted"}),
		cold: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "cold_reads_total",
			Help: "Cold tier reads, by result.",
		}, []string{"cache", "result"}),
	}

	for _, c := range []prometheus.Collector{h.started, h.completed, h.duration, h.retries, h.rollbacks, h.evictions, h.cold} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func labels(storageKey string) (cache, kind string) {
	k, ns, _, ok := keys.Split(storageKey)
	if !ok {
		return "unknown", "unknown"
	}
	return ns, k
}

func (h *Hooks) FetchStarted(storageKey string, background bool) {
	ns, kind := labels(storageKey)
	mode := "foreground"
	if background {
		mode = "background"
	}
	h.started.WithLabelValues(ns, kind, mode).Inc()
}

func (h *Hooks) FetchSucceeded(storageKey string, took time.Duration) {
	ns, kind := labels(storageKey)
	h.completed.WithLabelValues(ns, kind, "success").Inc()
	h.duration.WithLabelValues(ns, kind).Observe(took.Seconds())
}

func (h *Hooks) FetchFailed(storageKey string, _ int, _ error) {
	ns, kind := labels(storageKey)
	h.completed.WithLabelValues(ns, kind, "failure").Inc()
}

func (h *Hooks) FetchDropped(storageKey string) {
	ns, kind := labels(storageKey)
	h.completed.WithLabelValues(ns, kind, "dropped").Inc()
}

func (h *Hooks) RetryScheduled(storageKey string, _ int, _ time.Duration) {
	ns, kind := labels(storageKey)
	h.retries.WithLabelValues(ns, kind).Inc()
}

func (h *Hooks) OptimisticRolledBack(storageKey string, _ error) {
	ns, _ := labels(storageKey)
	h.rollbacks.WithLabelValues(ns).Inc()
}

func (h *Hooks) Evicted(storageKey string, demoted bool) {
	ns, _ := labels(storageKey)
	h.evictions.WithLabelValues(ns, strconv.FormatBool(demoted)).Inc()
}

func (h *Hooks) ColdHit(storageKey string) {
	ns, _ := labels(storageKey)
	h.cold.WithLabelValues(ns, "hit").Inc()
}

func (h *Hooks) ColdCorrupt(storageKey string, _ error) {
	ns, _ := labels(storageKey)
	h.cold.WithLabelValues(ns, "corrupt").Inc()
}
