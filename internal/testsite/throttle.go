package testsite

import (
	"sync"

	"golang.org/x/time/rate"
)

// throttle limits login attempts per client
type throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// newThrottle allows perMinute attempts per client with the given burst.
// A non-positive perMinute disables throttling.
func newThrottle(perMinute, burst int) *throttle {
	if perMinute <= 0 {
		return &throttle{rate: rate.Inf}
	}
	return &throttle{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (t *throttle) limiter(client string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[client]
	if !ok {
		l = rate.NewLimiter(t.rate, t.burst)
		t.limiters[client] = l
	}
	return l
}

// Allow consumes one attempt for client
func (t *throttle) Allow(client string) bool {
	if t.rate == rate.Inf {
		return true
	}
	return t.limiter(client).Allow()
}
