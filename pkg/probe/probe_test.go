package probe

import (
	"context"
	"errors"
	"testing"
)

func TestStaticProbe_Sample(t *testing.T) {
	p := NewStaticProbe(40, 55)

	load, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if load.CPUPercent != 40 {
		t.Errorf("CPUPercent = %v, want 40", load.CPUPercent)
	}
	if load.MemPercent != 55 {
		t.Errorf("MemPercent = %v, want 55", load.MemPercent)
	}
}

func TestStaticProbe_Set(t *testing.T) {
	p := NewStaticProbe(10, 10)
	p.Set(90, 75)

	load, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if load.CPUPercent != 90 || load.MemPercent != 75 {
		t.Errorf("Sample() = %+v, want {90 75}", load)
	}
}

func TestStaticProbe_Fail(t *testing.T) {
	p := NewStaticProbe(40, 55)
	p.Fail(ErrUnavailable)

	if _, err := p.Sample(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Sample() error = %v, want ErrUnavailable", err)
	}

	// Set clears the failure.
	p.Set(40, 55)
	if _, err := p.Sample(context.Background()); err != nil {
		t.Errorf("Sample() after Set error = %v", err)
	}
}

func TestStaticProbe_ContextCancelled(t *testing.T) {
	p := NewStaticProbe(40, 55)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Sample(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Sample() error = %v, want context.Canceled", err)
	}
}

func TestSystemProbe_Sample(t *testing.T) {
	p := NewSystemProbe(testLogger())

	load, err := p.Sample(context.Background())
	if err != nil {
		t.Skipf("system counters not available: %v", err)
	}

	if load.CPUPercent < 0 || load.CPUPercent > 100 {
		t.Errorf("CPUPercent = %v, want 0-100", load.CPUPercent)
	}
	if load.MemPercent <= 0 || load.MemPercent > 100 {
		t.Errorf("MemPercent = %v, want (0, 100]", load.MemPercent)
	}
}
