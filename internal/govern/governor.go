// Package govern arbitrates outbound HTTP concurrency and per-host request
// rate for the fetch pipeline: a global permit set, a per-host permit set,
// and a per-host token bucket, acquired in that order and released in
// reverse.
package govern

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config mirrors the HTTP governor knobs read from internal/config.
type Config struct {
	GlobalMaxConcurrency  int
	PerHostMaxConcurrency int
	PerHostRPS            float64
	PerHostBurst          int
}

// Governor owns the global semaphore and lazily-created per-host semaphores
// and token buckets. Per-host maps are never deleted once populated.
type Governor struct {
	cfg Config

	global *semaphore.Weighted

	mu        sync.Mutex
	hostSems  map[string]*semaphore.Weighted
	hostLimit map[string]*rate.Limiter
}

// New constructs a Governor from cfg, clamping zero/negative capacities to 1
// so a misconfigured governor still makes forward progress.
func New(cfg Config) *Governor {
	if cfg.GlobalMaxConcurrency <= 0 {
		cfg.GlobalMaxConcurrency = 1
	}
	if cfg.PerHostMaxConcurrency <= 0 {
		cfg.PerHostMaxConcurrency = 1
	}
	if cfg.PerHostBurst <= 0 {
		cfg.PerHostBurst = 1
	}
	return &Governor{
		cfg:       cfg,
		global:    semaphore.NewWeighted(int64(cfg.GlobalMaxConcurrency)),
		hostSems:  make(map[string]*semaphore.Weighted),
		hostLimit: make(map[string]*rate.Limiter),
	}
}

// Permit is held for the duration of one outbound request. Release must be
// called exactly once, in acquisition order (global, then per-host) or its
// reverse — Release always releases per-host first, then global, matching
// spec's "release order is reverse" rule.
type Permit struct {
	g    *Governor
	host *semaphore.Weighted
}

// Acquire blocks until a global permit, a per-host permit, and one token
// from the host's bucket are all available, in that order. It respects ctx
// cancellation at each of the three waits.
func (g *Governor) Acquire(ctx context.Context, host string) (*Permit, error) {
	if err := g.global.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("governor: acquire global permit: %w", err)
	}

	hostSem := g.hostSemaphore(host)
	if err := hostSem.Acquire(ctx, 1); err != nil {
		g.global.Release(1)
		return nil, fmt.Errorf("governor: acquire per-host permit for %s: %w", host, err)
	}

	limiter := g.hostLimiter(host)
	if err := limiter.Wait(ctx); err != nil {
		hostSem.Release(1)
		g.global.Release(1)
		return nil, fmt.Errorf("governor: wait for token bucket for %s: %w", host, err)
	}

	return &Permit{g: g, host: hostSem}, nil
}

// Release returns the per-host and global permits, in that order.
func (p *Permit) Release() {
	p.host.Release(1)
	p.g.global.Release(1)
}

func (g *Governor) hostSemaphore(host string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	sem, ok := g.hostSems[host]
	if !ok {
		sem = semaphore.NewWeighted(int64(g.cfg.PerHostMaxConcurrency))
		g.hostSems[host] = sem
	}
	return sem
}

func (g *Governor) hostLimiter(host string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	lim, ok := g.hostLimit[host]
	if !ok {
		rps := rate.Limit(g.cfg.PerHostRPS)
		if g.cfg.PerHostRPS <= 0 {
			rps = rate.Inf
		}
		lim = rate.NewLimiter(rps, g.cfg.PerHostBurst)
		g.hostLimit[host] = lim
	}
	return lim
}
