package ratelimit

import (
	"context"
	"testing"
)

func TestInMemoryRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewInMemoryRateLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, remaining, _, err := rl.Allow(ctx, "10.0.0.1", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if remaining != 5-i-1 {
			t.Errorf("expected remaining %d, got %d", 5-i-1, remaining)
		}
	}
}

func TestInMemoryRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewInMemoryRateLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "10.0.0.1", 3)
	}

	allowed, remaining, _, err := rl.Allow(ctx, "10.0.0.1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("request over the limit should be blocked")
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}
}

func TestInMemoryRateLimiter_ClientsIsolated(t *testing.T) {
	rl := NewInMemoryRateLimiter()
	ctx := context.Background()

	rl.Allow(ctx, "10.0.0.1", 1)

	allowed, _, _, _ := rl.Allow(ctx, "10.0.0.2", 1)
	if !allowed {
		t.Error("a different client must have its own window")
	}
}
