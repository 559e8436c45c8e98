package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestNew_Disabled(t *testing.T) {
	tests := []struct {
		name string
		rps  float64
	}{
		{"zero", 0},
		{"negative", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rps, 1, zerolog.Nop())
			if l.Enabled() {
				t.Fatal("Expected limiter to be disabled")
			}
			start := time.Now()
			for i := 0; i < 100; i++ {
				if err := l.Wait(context.Background()); err != nil {
					t.Fatalf("Wait() error = %v", err)
				}
			}
			if time.Since(start) > 100*time.Millisecond {
				t.Errorf("Disabled limiter should not block")
			}
		})
	}
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on nil limiter error = %v", err)
	}
}

func TestWait_Paces(t *testing.T) {
	l := New(20, 1, zerolog.Nop())
	before := testutil.ToFloat64(rateLimitThrottlesTotal)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	// Three requests at 20/s with burst 1 need at least two 50ms gaps.
	if elapsed < 90*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 90ms", elapsed)
	}
	if got := testutil.ToFloat64(rateLimitThrottlesTotal) - before; got < 2 {
		t.Errorf("Throttles = %v, want >= 2", got)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(0.1, 1, zerolog.Nop())
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("First Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Expected error when context expires before a slot frees up")
	}
}
