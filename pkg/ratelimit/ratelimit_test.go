package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reelforge/reelforge/pkg/ratelimit"
)

func TestAcquireDefaultConcurrencyOne(t *testing.T) {
	t.Parallel()
	k := ratelimit.New(ratelimit.Limits{})

	release1, err := k.Acquire(context.Background(), "openai:gpt-4o")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "openai:gpt-4o")
	if err == nil {
		t.Fatalf("expected second Acquire to block until release, got nil error")
	}

	release1()
	release2, err := k.Acquire(context.Background(), "openai:gpt-4o")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestAcquireDistinctKeysDoNotContend(t *testing.T) {
	t.Parallel()
	k := ratelimit.New(ratelimit.Limits{})

	r1, err := k.Acquire(context.Background(), "openai:gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	defer r1()

	r2, err := k.Acquire(context.Background(), "anthropic:claude")
	if err != nil {
		t.Fatalf("expected distinct rate key to admit immediately: %v", err)
	}
	r2()
}

func TestConfigureOverridesConcurrency(t *testing.T) {
	t.Parallel()
	k := ratelimit.New(ratelimit.Limits{})
	k.Configure("batch:worker", ratelimit.Limits{Concurrency: 2})

	r1, err := k.Acquire(context.Background(), "batch:worker")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := k.Acquire(context.Background(), "batch:worker")
	if err != nil {
		t.Fatalf("expected concurrency 2 to admit a second caller: %v", err)
	}
	r1()
	r2()
}

func TestAcquireRespectsCancellation(t *testing.T) {
	t.Parallel()
	k := ratelimit.New(ratelimit.Limits{})

	release, err := k.Acquire(context.Background(), "key")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = k.Acquire(ctx, "key")
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestStatsCountsAllowedCalls(t *testing.T) {
	t.Parallel()
	k := ratelimit.New(ratelimit.Limits{Concurrency: 4})

	var wg atomic.Int32
	for i := 0; i < 3; i++ {
		release, err := k.Acquire(context.Background(), "key")
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		release()
	}

	stats := k.Stats("key")
	if stats.Allowed != 3 || stats.TotalCalls != 3 {
		t.Fatalf("got %+v", stats)
	}
}
