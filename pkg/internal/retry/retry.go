// Package retry computes the bounded exponential-backoff delays the
// runner waits between fallback attempts of one job.
package retry

import (
	"math"
	"time"
)

// Config bounds a backoff schedule.
type Config struct {
	// MaxRetries caps how many delayed re-attempts a schedule allows.
	MaxRetries int

	// InitialDelay is the wait before the first re-attempt. Zero disables
	// sleeping entirely.
	InitialDelay time.Duration

	// MaxDelay caps the growth of later waits.
	MaxDelay time.Duration

	// Multiplier scales each successive wait (default 2).
	Multiplier float64

	// Jitter spreads each delay by up to 25% so retries against one
	// provider don't synchronise.
	Jitter bool
}

// DefaultConfig returns the schedule used when a runner is built without an
// explicit override.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Delay returns the wait before re-attempt number attempt (1-based).
func (c Config) Delay(attempt int) time.Duration {
	if c.InitialDelay <= 0 || attempt < 1 {
		return 0
	}
	multiplier := c.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	d := float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d += d * 0.25 * (float64(time.Now().UnixNano()%1000) / 1000.0)
	}
	return time.Duration(d)
}
