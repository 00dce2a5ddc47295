package api

import (
	"sync"
	"time"

	"p2pmessage/pkg/timeutil"

	"golang.org/x/time/rate"
)

// Per-key rate limiter pool. Keys are API keys on the client API and caller
// agent keys on the peer endpoint.
type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu            sync.Mutex
	m             map[string]*limiterEntry
	rps           float64
	burst         int
	startCleanup  sync.Once
	stopOnce      sync.Once
	ttl           time.Duration
	cleanupPeriod time.Duration
	stopCh        chan struct{}
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{rps: rps, burst: burst, stopCh: make(chan struct{})}
}

// get limiter for key, create if missing; start cleanup once
func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() {
		if p.ttl == 0 {
			p.ttl = 10 * time.Minute
		}
		if p.cleanupPeriod == 0 {
			p.cleanupPeriod = time.Minute
		}
		go p.cleanupLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*limiterEntry)
	}
	if e, ok := p.m[key]; ok {
		e.lastSeen = timeutil.Now()
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: timeutil.Now()}
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// Shutdown stops the cleanup goroutine. Safe to call more than once.
func (p *limiterPool) Shutdown() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// sweep drops limiters idle since before cutoff.
func (p *limiterPool) sweep(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweep(timeutil.Now().Add(-p.ttl))
		case <-p.stopCh:
			return
		}
	}
}
