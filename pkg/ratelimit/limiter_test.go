package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLimiter_Unlimited(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero rate", Config{RequestsPerSecond: 0, Burst: 5}},
		{"negative rate", Config{RequestsPerSecond: -1, Burst: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.cfg, zerolog.Nop())
			if !l.Unlimited() {
				t.Fatal("Expected unlimited limiter")
			}
			for i := 0; i < 100; i++ {
				if err := l.Wait(context.Background()); err != nil {
					t.Fatalf("Wait() returned error: %v", err)
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		t.Errorf("RequestsPerSecond = %v, should be > 0", cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		t.Errorf("Burst = %d, should be >= 1", cfg.Burst)
	}
}

func TestLimiter_BurstPassesImmediately(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, Burst: 3}, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Burst requests should not wait, took %v", elapsed)
	}
}

func TestLimiter_Paces(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 20, Burst: 1}, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() returned error: %v", err)
		}
	}
	// 1 immediate + 2 waits of ~50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Expected pacing delay, took only %v", elapsed)
	}
}

func TestLimiter_WaitContextCancelled(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 0.1, Burst: 1}, zerolog.Nop())

	// Drain the single token
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("First Wait() returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Expected error when context expires during wait")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNewLimiter_BurstClamped(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 10, Burst: 0}, zerolog.Nop())
	if l.Unlimited() {
		t.Fatal("Expected limited limiter")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() with clamped burst returned error: %v", err)
	}
}

func TestLimiter_WaitCancelledDuringDelay(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, Burst: 1}, zerolog.Nop())

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("First Wait() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err := l.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Wait() should return on cancel, took %v", elapsed)
	}
}
