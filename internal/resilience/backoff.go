package resilience

import (
	"math/rand/v2"
	"time"
)

// MaxBackoff caps a single retry delay.
const MaxBackoff = 5 * time.Second

// Backoff returns base doubled per attempt (attempt 1 waits base), capped at
// MaxBackoff, then spread by ±jitter, a fraction such as 0.2.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, MaxBackoff)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * min(jitter, 1)
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
