package arena

import (
	"sync"
	"time"
)

// joinLimiter bounds how many sessions may complete the handshake within a
// sliding window, which blunts join floods without tracking per-IP state.
type joinLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
}

// newJoinLimiter allows up to limit joins per window. A non-positive window
// or limit disables the limiter.
func newJoinLimiter(window time.Duration, limit int, timeSource func() time.Time) *joinLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &joinLimiter{window: window, limit: limit, now: timeSource}
}

// allow reports whether another join may proceed right now.
func (l *joinLimiter) allow() bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.events[:0]
	for _, ts := range l.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.events = kept
	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}
