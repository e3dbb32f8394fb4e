// Package ratelimit provides the per-user token-bucket limiter checked once
// at the start of each batch request.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerUser hands out one token bucket per user ID.
type PerUser struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewPerUser creates a limiter allowing rps requests per second with the
// given burst.
func NewPerUser(rps float64, burst int) *PerUser {
	return &PerUser{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether the user may proceed right now.
func (p *PerUser) Allow(userID string) bool {
	p.mu.Lock()
	limiter, ok := p.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(p.rps, p.burst)
		p.limiters[userID] = limiter
	}
	p.mu.Unlock()

	return limiter.Allow()
}
