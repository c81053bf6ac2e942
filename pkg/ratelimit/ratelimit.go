// Package ratelimit provides per-rate-key admission control shared across
// the runner: a concurrency semaphore (default one in-flight call per key)
// combined with an optional token-bucket throttle.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Stats tracks one rate key's admission history.
type Stats struct {
	Allowed    int
	Throttled  int
	TotalCalls int
}

// Limits configures one rate key's admission control.
type Limits struct {
	// Concurrency bounds simultaneous in-flight jobs for the key. New and
	// Configure treat zero as 1; a negative value means unbounded (no
	// semaphore).
	Concurrency int
	// RequestsPerSecond, if positive, layers a token-bucket throttle on
	// top of the concurrency bound.
	RequestsPerSecond float64
	Burst             int
}

type keyState struct {
	sem     chan struct{}
	limiter *rate.Limiter

	mu    sync.Mutex
	stats Stats
}

// Keyed is a registry of per-rate-key limiters, created lazily on first
// use with defaults, or pre-declared via Configure.
type Keyed struct {
	mu       sync.Mutex
	keys     map[string]*keyState
	defaults Limits
}

// New returns a Keyed limiter using defaultLimits for any rate key not
// explicitly configured via Configure. The zero Limits value means
// "concurrency 1, no throttle".
func New(defaultLimits Limits) *Keyed {
	if defaultLimits.Concurrency == 0 {
		defaultLimits.Concurrency = 1
	}
	return &Keyed{keys: make(map[string]*keyState), defaults: defaultLimits}
}

// Configure sets explicit limits for rateKey, overriding the default.
func (k *Keyed) Configure(rateKey string, limits Limits) {
	if limits.Concurrency == 0 {
		limits.Concurrency = 1
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[rateKey] = newKeyState(limits)
}

func newKeyState(limits Limits) *keyState {
	ks := &keyState{}
	if limits.Concurrency > 0 {
		ks.sem = make(chan struct{}, limits.Concurrency)
	}
	if limits.RequestsPerSecond > 0 {
		burst := limits.Burst
		if burst <= 0 {
			burst = 1
		}
		ks.limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}
	return ks
}

func (k *Keyed) stateFor(rateKey string) *keyState {
	k.mu.Lock()
	defer k.mu.Unlock()
	ks, ok := k.keys[rateKey]
	if !ok {
		ks = newKeyState(k.defaults)
		k.keys[rateKey] = ks
	}
	return ks
}

// Release returns an in-flight slot for the rate key it was acquired from.
type Release func()

// Acquire blocks until rateKey admits one more in-flight call, respecting
// ctx cancellation, and returns a Release to call once the call completes.
func (k *Keyed) Acquire(ctx context.Context, rateKey string) (Release, error) {
	ks := k.stateFor(rateKey)

	ks.mu.Lock()
	ks.stats.TotalCalls++
	ks.mu.Unlock()

	if ks.sem != nil {
		select {
		case ks.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if ks.limiter != nil {
		res := ks.limiter.Reserve()
		if d := res.Delay(); d > 0 {
			ks.mu.Lock()
			ks.stats.Throttled++
			ks.mu.Unlock()
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				res.Cancel()
				if ks.sem != nil {
					<-ks.sem
				}
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	ks.mu.Lock()
	ks.stats.Allowed++
	ks.mu.Unlock()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		if ks.sem != nil {
			<-ks.sem
		}
	}, nil
}

// Stats returns the current admission stats for rateKey.
func (k *Keyed) Stats(rateKey string) Stats {
	ks := k.stateFor(rateKey)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.stats
}
