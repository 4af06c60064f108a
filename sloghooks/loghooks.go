// Package sloghooks logs fetchcache hook events through log/slog with
// per-event sampling and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	fc "github.com/unkn0wn-root/fetchcache"
	"github.com/unkn0wn-root/fetchcache/internal/keys"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	StartedEvery   uint64
	SucceededEvery uint64
	DroppedEvery   uint64
	EvictedEvery   uint64
	// Optional key redactor. Defaults to a SHA-256 prefix of the key part;
	// the kind and namespace stay readable.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	startedCtr   atomic.Uint64
	succeededCtr atomic.Uint64
	droppedCtr   atomic.Uint64
	evictedCtr   atomic.Uint64
}

var _ fc.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	kind, ns, key, ok := keys.Split(k)
	sum := sha256.Sum256([]byte(key))
	if !ok {
		return hex.EncodeToString(sum[:8])
	}
	return kind + ":" + ns + ":" + hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(storageKey string, background bool) {
	if h.l == nil || !sample(h.opts.StartedEvery, &h.startedCtr) {
		return
	}
	h.l.Debug("fetchcache.fetch_started",
		"key", h.redact(storageKey),
		"background", background)
}

func (h *Hooks) FetchSucceeded(storageKey string, took time.Duration) {
	if h.l == nil || !sample(h.opts.SucceededEvery, &h.succeededCtr) {
		return
	}
	h.l.Debug("fetchcache.fetch_succeeded",
		"key", h.redact(storageKey),
		"took", took)
}

func (h *Hooks) FetchFailed(storageKey string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("fetchcache.fetch_failed",
		"key", h.redact(storageKey),
		"attempts", attempts,
		"err", err)
}

func (h *Hooks) FetchDropped(storageKey string) {
	if h.l == nil || !sample(h.opts.DroppedEvery, &h.droppedCtr) {
		return
	}
	h.l.Debug("fetchcache.fetch_dropped",
		"key", h.redact(storageKey))
}

func (h *Hooks) RetryScheduled(storageKey string, attempt int, delay time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("fetchcache.retry_scheduled",
		"key", h.redact(storageKey),
		"attempt", attempt,
		"delay", delay)
}

func (h *Hooks) OptimisticRolledBack(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("fetchcache.optimistic_rolled_back",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) Evicted(storageKey string, demoted bool) {
	if h.l == nil || !sample(h.opts.EvictedEvery, &h.evictedCtr) {
		return
	}
	h.l.Debug("fetchcache.evicted",
		"key", h.redact(storageKey),
		"demoted", demoted)
}

func (h *Hooks) ColdHit(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("fetchcache.cold_hit",
		"key", h.redact(storageKey))
}

func (h *Hooks) ColdCorrupt(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("fetchcache.cold_corrupt",
		"key", h.redact(storageKey),
		"err", err)
}
