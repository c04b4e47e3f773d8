package fetcher

import (
	"net/url"
	"sync"
	"time"
)

// proxyPool hands out proxy endpoints round-robin with health scoring.
// An endpoint that keeps failing is quarantined for a cooldown before it
// re-enters rotation.
type proxyPool struct {
	mu        sync.Mutex
	endpoints []*proxyEndpoint
	next      int
	cooldown  time.Duration
	now       func() time.Time
}

type proxyEndpoint struct {
	url             *url.URL
	consecutiveFail int
	quarantinedTo   time.Time
}

const proxyQuarantineAfter = 3

func newProxyPool(endpoints []string, cooldown time.Duration) *proxyPool {
	pool := &proxyPool{
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, raw := range endpoints {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		pool.endpoints = append(pool.endpoints, &proxyEndpoint{url: u})
	}
	return pool
}

func (p *proxyPool) empty() bool {
	return p == nil || len(p.endpoints) == 0
}

// acquire returns the next healthy endpoint, or nil when every endpoint is
// quarantined.
func (p *proxyPool) acquire() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endpoints) == 0 {
		return nil
	}
	now := p.now()
	for i := 0; i < len(p.endpoints); i++ {
		candidate := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)
		if candidate.quarantinedTo.After(now) {
			continue
		}
		return candidate.url
	}
	return nil
}

func (p *proxyPool) reportSuccess(proxyURL *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.url == proxyURL {
			ep.consecutiveFail = 0
			return
		}
	}
}

func (p *proxyPool) reportFailure(proxyURL *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.url == proxyURL {
			ep.consecutiveFail++
			if ep.consecutiveFail >= proxyQuarantineAfter {
				ep.quarantinedTo = p.now().Add(p.cooldown)
				ep.consecutiveFail = 0
			}
			return
		}
	}
}
