package retry

import (
	"testing"
	"time"
)

func TestDelayGrowsExponentially(t *testing.T) {
	t.Parallel()

	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	if got := cfg.Delay(1); got != 100*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 100ms", got)
	}
	if got := cfg.Delay(2); got != 200*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 200ms", got)
	}
	if got := cfg.Delay(3); got != 400*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 400ms", got)
	}
}

func TestDelayCappedAtMax(t *testing.T) {
	t.Parallel()

	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   10.0,
		Jitter:       false,
	}

	if got := cfg.Delay(5); got != 500*time.Millisecond {
		t.Errorf("Delay(5) = %v, want the 500ms cap", got)
	}
}

func TestDelayZeroInitialDisablesSleeping(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxDelay: time.Second, Multiplier: 2.0}
	if got := cfg.Delay(3); got != 0 {
		t.Errorf("Delay with zero InitialDelay = %v, want 0", got)
	}
}

func TestDelayDefaultsMultiplier(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialDelay: 50 * time.Millisecond, MaxDelay: time.Minute}
	if got := cfg.Delay(2); got != 100*time.Millisecond {
		t.Errorf("Delay(2) with zero Multiplier = %v, want 100ms (doubling)", got)
	}
}

func TestDelayJitterBounded(t *testing.T) {
	t.Parallel()

	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	got := cfg.Delay(1)
	if got < 100*time.Millisecond || got > 125*time.Millisecond {
		t.Errorf("jittered Delay(1) = %v, want within [100ms, 125ms]", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("MaxDelay = %v, want 60s", cfg.MaxDelay)
	}
	if !cfg.Jitter {
		t.Error("Jitter should default to true")
	}
}
