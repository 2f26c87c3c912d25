package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff_Defaults(t *testing.T) {
	b := NewExponentialBackoff(3)

	if b.InitialDelay() != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", b.InitialDelay())
	}
	if b.MaxDelay() != time.Minute {
		t.Errorf("MaxDelay = %v, want 1m", b.MaxDelay())
	}
	if b.MaxAttempts() != 3 {
		t.Errorf("MaxAttempts = %d, want 3", b.MaxAttempts())
	}
}

func TestExponentialBackoff_NextDelay_WithoutJitter(t *testing.T) {
	b := NewExponentialBackoff(5,
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoff_CapsAtMaxDelay(t *testing.T) {
	b := NewExponentialBackoff(-1,
		WithInitialDelay(time.Second),
		WithMaxDelay(5*time.Second),
		WithJitter(0),
	)

	if got := b.NextDelay(10); got != 5*time.Second {
		t.Errorf("NextDelay(10) = %v, want 5s", got)
	}
	if got := b.NextDelay(5000); got != 5*time.Second {
		t.Errorf("NextDelay(5000) = %v, want 5s (no overflow)", got)
	}
}

func TestExponentialBackoff_JitterBounds(t *testing.T) {
	for _, tc := range []struct {
		random float64
		want   time.Duration
	}{
		{0.0, 900 * time.Millisecond},
		{0.5, time.Second},
		{0.75, 1050 * time.Millisecond},
	} {
		b := NewExponentialBackoff(1,
			WithInitialDelay(time.Second),
			WithJitter(0.1),
			WithJitterFunc(func() float64 { return tc.random }),
		)
		if got := b.NextDelay(0); got != tc.want {
			t.Errorf("random=%v: NextDelay(0) = %v, want %v", tc.random, got, tc.want)
		}
	}
}
