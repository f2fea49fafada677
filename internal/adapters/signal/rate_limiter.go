package signal

import (
	"sync"
	"time"

	"github.com/dkeye/medassist/internal/domain"
)

// RateLimiter is a sliding window per connection and event type.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.ConnID]map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.ConnID]map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(id domain.ConnID, event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	events, ok := rl.history[id]
	if !ok {
		events = make(map[string][]time.Time)
		rl.history[id] = events
	}
	attempts := events[event]

	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		events[event] = fresh
		return false
	}
	events[event] = append(fresh, now)
	return true
}

// Forget drops the history of a closed connection.
func (rl *RateLimiter) Forget(id domain.ConnID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
