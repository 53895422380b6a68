package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	limiter := NewLimiter(2.0, 2)

	if !limiter.Allow() {
		t.Error("first request should be allowed")
	}
	if !limiter.Allow() {
		t.Error("second request should be allowed")
	}
	if limiter.Allow() {
		t.Error("third request should be blocked")
	}
}

func TestLimiterWait(t *testing.T) {
	limiter := NewLimiter(10.0, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Errorf("wait should not error on first request: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("first request should be immediate, took %v", elapsed)
	}

	start = time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Errorf("wait should not error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 150*time.Millisecond {
		t.Errorf("second request should wait ~100ms, took %v", elapsed)
	}
}

func TestLimiterWaitTimeout(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("wait should time out with a short context")
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("wait should time out quickly, took %v", elapsed)
	}
}

func TestLimiterConcurrentAccess(t *testing.T) {
	limiter := NewLimiter(100.0, 10)

	const goroutines = 50
	const perGoroutine = 5

	var allowed, blocked int64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if limiter.Allow() {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&blocked, 1)
				}
			}
		}()
	}
	wg.Wait()

	if total := allowed + blocked; total != int64(goroutines*perGoroutine) {
		t.Errorf("total requests %d != expected %d", total, goroutines*perGoroutine)
	}
	if allowed < 10 {
		t.Errorf("should allow at least the burst amount, allowed %d", allowed)
	}
	if blocked == 0 {
		t.Error("should block some requests under this load")
	}
}

func TestLimiterStats(t *testing.T) {
	limiter := NewLimiter(5.0, 10)
	limiter.Allow()
	limiter.Allow()

	stats := limiter.Stats()
	if stats.RPS != 5.0 {
		t.Errorf("rps should be 5.0, got %f", stats.RPS)
	}
	if stats.Burst != 10 {
		t.Errorf("burst should be 10, got %d", stats.Burst)
	}
	if stats.TokensAvailable >= 10 {
		t.Errorf("tokens available should be < 10 after usage, got %f", stats.TokensAvailable)
	}
}

func TestLimiterSetRPS(t *testing.T) {
	limiter := NewLimiter(1.0, 2)
	limiter.Allow()
	limiter.Allow()

	if limiter.Allow() {
		t.Error("should be throttled at 1 RPS")
	}

	limiter.SetRPS(10.0)
	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow() {
		t.Error("should allow requests after increasing RPS")
	}
}

func TestManagerAddCallClass(t *testing.T) {
	manager := NewManager()
	manager.AddCallClass("klines", 5.0, 10)

	limiter, ok := manager.Limiter("klines")
	if !ok {
		t.Error("call class should exist after adding")
	}
	if limiter == nil {
		t.Error("limiter should not be nil")
	}
}

func TestManagerAllow(t *testing.T) {
	manager := NewManager()

	if !manager.Allow("unregistered") {
		t.Error("should allow requests for an unregistered call class")
	}

	manager.AddCallClass("ticker", 1.0, 1)

	if !manager.Allow("ticker") {
		t.Error("first request should be allowed")
	}
	if manager.Allow("ticker") {
		t.Error("second request should be blocked")
	}
}

func TestManagerWait(t *testing.T) {
	manager := NewManager()
	manager.AddCallClass("orderbook", 10.0, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := manager.Wait(ctx, "orderbook"); err != nil {
		t.Errorf("first wait should not error: %v", err)
	}
	if err := manager.Wait(ctx, "unregistered"); err != nil {
		t.Errorf("unregistered call class should return immediately without error: %v", err)
	}
}

func TestManagerStats(t *testing.T) {
	manager := NewManager()
	manager.AddCallClass("ticker", 5.0, 10)
	manager.AddCallClass("klines", 3.0, 5)

	manager.Allow("ticker")
	manager.Allow("klines")

	stats := manager.Stats()
	if len(stats) != 2 {
		t.Errorf("should have stats for 2 call classes, got %d", len(stats))
	}
	if _, ok := stats["ticker"]; !ok {
		t.Error("should have stats for ticker")
	}
}
