// Package ristretto adapts dgraph-io/ristretto to provider.Provider.
//
// Ristretto admits writes probabilistically, so a demotion may be dropped
// under pressure; Set then reports ok=false.
package ristretto

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/fetchcache/provider"
)

type Config struct {
	// MaxCost bounds the stored payload bytes. Required.
	MaxCost int64
	// NumCounters defaults to MaxCost/100, at least 1000.
	NumCounters int64
	// BufferItems defaults to 64.
	BufferItems int64
	// Metrics enables ristretto's own counters, see Provider.Metrics.
	Metrics bool
}

type Provider struct {
	c *rc.Cache

	evicted  atomic.Uint64
	rejected atomic.Uint64
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.MaxCost <= 0 {
		return nil, errors.New("ristretto: MaxCost must be positive")
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = max(cfg.MaxCost/100, 1000)
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}

	p := &Provider{}
	c, err := rc.NewCache(&rc.Config{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cfg.BufferItems,
		Metrics:            cfg.Metrics,
		IgnoreInternalCost: true,
		OnEvict:            func(*rc.Item) { p.evicted.Add(1) },
		OnReject:           func(*rc.Item) { p.rejected.Add(1) },
	})
	if err != nil {
		return nil, err
	}
	p.c = c
	return p, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set blocks until the write is applied so the next Get sees it.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	if !p.c.SetWithTTL(key, value, cost, ttl) {
		return false, nil
	}
	p.c.Wait()
	_, ok := p.c.Get(key)
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Clear(_ context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Close()
	return nil
}

// Evicted counts records pushed out by cost pressure.
func (p *Provider) Evicted() uint64 { return p.evicted.Load() }

// Rejected counts records the admission policy refused.
func (p *Provider) Rejected() uint64 { return p.rejected.Load() }

// Metrics exposes ristretto's counters; nil unless Config.Metrics was set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
