package resilience

import "time"

// BackoffFrom builds a Backoff from config values, keeping defaults for
// zero or negative inputs.
func BackoffFrom(attempts, initialMs, maxMs int, factor, jitter float64) Backoff {
	b := DefaultBackoff()
	if attempts > 0 {
		b.Attempts = attempts
	}
	if initialMs > 0 {
		b.Initial = time.Duration(initialMs) * time.Millisecond
	}
	if maxMs > 0 {
		b.Max = time.Duration(maxMs) * time.Millisecond
	}
	if factor > 0 {
		b.Factor = factor
	}
	if jitter >= 0 {
		b.Jitter = jitter
	}
	return b
}

// BreakerFrom builds a BreakerConfig from config values.
func BreakerFrom(threshold, cooldownSecs int) BreakerConfig {
	c := DefaultBreakerConfig()
	if threshold > 0 {
		c.Threshold = threshold
	}
	if cooldownSecs > 0 {
		c.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return c
}
