package fetchcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/fetchcache/genstore"
)

// Token identifies one in-flight request. Its context is cancelled when the
// request is superseded, cancelled or completed.
type Token struct {
	key    string
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

func (t *Token) Key() string              { return t.key }
func (t *Token) Gen() uint64              { return t.gen }
func (t *Token) Context() context.Context { return t.ctx }

// Requests owns at most one token per key.
type Requests struct {
	mu   sync.Mutex
	gens genstore.GenStore
	live map[string]*Token
}

func NewRequests(gens genstore.GenStore) *Requests {
	return &Requests{gens: gens, live: make(map[string]*Token)}
}

// Begin bumps the key's generation, cancels the previously registered token
// and registers a fresh one derived from parent.
func (r *Requests) Begin(parent context.Context, key string) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen, err := r.gens.Bump(parent, key)
	if err != nil {
		return nil, fmt.Errorf("fetchcache: begin %q: %w", key, err)
	}
	if prev := r.live[key]; prev != nil {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	tok := &Token{key: key, gen: gen, ctx: ctx, cancel: cancel}
	r.live[key] = tok
	return tok, nil
}

// Current reports whether tok is still the registered token for its key.
func (r *Requests) Current(tok *Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[tok.key] == tok
}

func (r *Requests) IsCancelled(tok *Token) bool {
	return tok.ctx.Err() != nil
}

// Complete clears the registration iff tok is current. It is a no-op for a
// superseded token, which guards against late completions.
func (r *Requests) Complete(tok *Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[tok.key] != tok {
		return false
	}
	delete(r.live, tok.key)
	tok.cancel()
	return true
}

// Cancel cancels and unregisters the key's token, if any.
func (r *Requests) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok := r.live[key]
	if tok == nil {
		return false
	}
	tok.cancel()
	delete(r.live, key)
	return true
}

func (r *Requests) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, tok := range r.live {
		tok.cancel()
		delete(r.live, k)
	}
}

// Inflight reports the number of registered tokens.
func (r *Requests) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
