package resilience

import (
	"context"
	"testing"
	"time"
)

func TestPacer_DelayWithinBounds(t *testing.T) {
	p := NewPacer(3*time.Millisecond, time.Millisecond)
	if p.Min != time.Millisecond || p.Max != 3*time.Millisecond {
		t.Fatalf("expected swapped bounds, got %+v", p)
	}
	for i := 0; i < 100; i++ {
		d := p.Delay()
		if d < p.Min || d > p.Max {
			t.Fatalf("delay %v outside [%v, %v]", d, p.Min, p.Max)
		}
	}
}

func TestPacer_ZeroNeverWaits(t *testing.T) {
	var p Pacer
	if p.Delay() != 0 {
		t.Errorf("expected zero delay, got %v", p.Delay())
	}
	if err := FromPacingConfig(0, 0).Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPacer_WaitHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewPacer(time.Second, 2*time.Second).Wait(ctx); err == nil {
		t.Error("expected context error")
	}
}
