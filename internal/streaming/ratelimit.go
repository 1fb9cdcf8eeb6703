package streaming

import (
	"sync"
	"time"

	"github.com/auralis/auralis/internal/constants"
)

// rateLimiter is a per-connection token bucket allowing
// RateLimitPerSecond messages/second, refilling once per second rather
// than continuously, which is simple and matches the coarse-grained
// "messages/second" requirement without needing a leaky-bucket timer.
type rateLimiter struct {
	mu          sync.Mutex
	tokens      int
	max         int
	lastRefill  time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{tokens: constants.RateLimitPerSecond, max: constants.RateLimitPerSecond, lastRefill: time.Now()}
}

// allow reports whether one more message may be processed now, consuming
// a token if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(r.lastRefill); elapsed >= time.Second {
		refills := int(elapsed / time.Second)
		r.tokens += refills * r.max
		if r.tokens > r.max {
			r.tokens = r.max
		}
		r.lastRefill = now
	}

	if r.tokens <= 0 {
		return false
	}
	r.tokens--
	return true
}
