package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "10.0.0.1"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "10.0.0.2"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if n := limiter.Clients(); n != 2 {
		t.Errorf("expected 2 tracked clients, got %d", n)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = limiter.Wait(ctx, "10.0.0.1")
	if err := limiter.Wait(ctx, "10.0.0.1"); err == nil {
		t.Error("expected second wait to fail before a token is available")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	client := "10.0.0.1"

	if !limiter.Allow(client) {
		t.Error("first request should pass")
	}

	// burst 1 is now consumed
	if limiter.Allow(client) {
		t.Error("expected allow to fail (exhausted tokens)")
	}

	if !limiter.Allow("10.0.0.2") {
		t.Error("expected allow for other client")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected with limiting disabled", i)
		}
	}
}

func TestLimiter_SetClientRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	client := "slow-client"

	limiter.SetClientRate(client, 0.1, 1)

	if !limiter.Allow(client) {
		t.Error("first request should pass")
	}
	if limiter.Allow(client) {
		t.Error("second request should fail")
	}
	if !limiter.Allow("fast-client") {
		t.Error("other client should pass")
	}
}
