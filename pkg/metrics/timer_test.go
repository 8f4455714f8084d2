package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestTimer_Stop(t *testing.T) {
	mock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.Clock = mock
	agg := newTestAggregator(t, cfg)

	tm := agg.StartTimer()
	mock.Add(250 * time.Millisecond)
	tm.Stop(KindTaskSuccess)

	s := agg.Summary(KindTaskSuccess, 0)
	if s.Count != 1 {
		t.Fatalf("Count = %d, want 1", s.Count)
	}
	if s.MeanDuration != 250*time.Millisecond {
		t.Errorf("MeanDuration = %v, want 250ms", s.MeanDuration)
	}
}

func TestObserve_Success(t *testing.T) {
	agg := newTestAggregator(t, DefaultConfig())

	if err := agg.Observe(func() error { return nil }); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	if got := agg.Summary(KindTaskSuccess, 0).Count; got != 1 {
		t.Errorf("success count = %d, want 1", got)
	}
	if got := agg.Summary(KindTaskFailure, 0).Count; got != 0 {
		t.Errorf("failure count = %d, want 0", got)
	}
}

func TestObserve_Failure(t *testing.T) {
	agg := newTestAggregator(t, DefaultConfig())

	wantErr := errors.New("boom")
	if err := agg.Observe(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Observe() error = %v, want %v", err, wantErr)
	}

	if got := agg.Summary(KindTaskFailure, 0).Count; got != 1 {
		t.Errorf("failure count = %d, want 1", got)
	}
}

func TestObserve_PanicStillRecords(t *testing.T) {
	agg := newTestAggregator(t, DefaultConfig())

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = agg.Observe(func() error { panic("exploded") })
	}()

	if got := agg.Summary(KindTaskFailure, 0).Count; got != 1 {
		t.Errorf("failure count = %d, want 1 (sample recorded on panic path)", got)
	}
}
