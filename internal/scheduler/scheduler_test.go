package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeMarker struct {
	mu   sync.Mutex
	date string
	err  error
}

func (m *fakeMarker) LastResetDate(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.date, m.err
}

func (m *fakeMarker) SetLastResetDate(ctx context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.date = date
	return nil
}

type fakeRunner struct {
	mu     sync.Mutex
	runs   int
	lastAt time.Time
	err    error
	block  chan struct{}
}

func (r *fakeRunner) RunReset(ctx context.Context, resetAt time.Time) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	r.lastAt = resetAt
	return r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(marker Marker, runner Runner, at time.Time) *Scheduler {
	s := New(marker, runner, testLogger(), Options{})
	s.now = func() time.Time { return at }
	return s
}

func TestCheckRunsOncePerDay(t *testing.T) {
	marker := &fakeMarker{}
	runner := &fakeRunner{}
	at := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	s := newTestScheduler(marker, runner, at)

	for i := 0; i < 3; i++ {
		if err := s.Check(context.Background()); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	if got := runner.count(); got != 1 {
		t.Fatalf("runner ran %d times, want 1", got)
	}
	if marker.date != "2024-03-05" {
		t.Fatalf("marker = %q, want 2024-03-05", marker.date)
	}
}

func TestCheckRunsAgainOnNewDay(t *testing.T) {
	marker := &fakeMarker{date: "2024-03-05"}
	runner := &fakeRunner{}
	at := time.Date(2024, 3, 6, 0, 0, 5, 0, time.UTC)
	s := newTestScheduler(marker, runner, at)

	if err := s.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := runner.count(); got != 1 {
		t.Fatalf("runner ran %d times, want 1", got)
	}
	if marker.date != "2024-03-06" {
		t.Fatalf("marker = %q, want 2024-03-06", marker.date)
	}
}

func TestFailedResetLeavesMarkerForRetry(t *testing.T) {
	marker := &fakeMarker{date: "2024-03-04"}
	runner := &fakeRunner{err: errors.New("db down")}
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(marker, runner, at)

	if err := s.Check(context.Background()); err == nil {
		t.Fatal("expected error from failed reset")
	}
	if marker.date != "2024-03-04" {
		t.Fatalf("marker advanced to %q despite failure", marker.date)
	}

	// Next check retries and succeeds.
	runner.err = nil
	if err := s.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := runner.count(); got != 2 {
		t.Fatalf("runner ran %d times, want 2", got)
	}
	if marker.date != "2024-03-05" {
		t.Fatalf("marker = %q, want 2024-03-05", marker.date)
	}
}

func TestManualResetIgnoresMarker(t *testing.T) {
	marker := &fakeMarker{date: "2024-03-05"}
	runner := &fakeRunner{}
	at := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	s := newTestScheduler(marker, runner, at)

	if err := s.ManualReset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := runner.count(); got != 1 {
		t.Fatalf("runner ran %d times, want 1", got)
	}
}

func TestConcurrentTriggersSingleFlight(t *testing.T) {
	marker := &fakeMarker{}
	runner := &fakeRunner{block: make(chan struct{})}
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(marker, runner, at)

	done := make(chan error, 1)
	go func() { done <- s.ManualReset(context.Background()) }()

	// Wait for the first reset to hold the lock.
	deadline := time.After(2 * time.Second)
	for {
		if !s.mu.TryLock() {
			break
		}
		s.mu.Unlock()
		select {
		case <-deadline:
			t.Fatal("first reset never started")
		case <-time.After(time.Millisecond):
		}
	}

	if err := s.ManualReset(context.Background()); !errors.Is(err, ErrResetInProgress) {
		t.Fatalf("second trigger: got %v, want ErrResetInProgress", err)
	}

	close(runner.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := runner.count(); got != 1 {
		t.Fatalf("runner ran %d times, want 1", got)
	}
}

func TestResetDatesShareOneClock(t *testing.T) {
	// Just past local midnight in a zone where the UTC date is still the
	// previous day: the marker and the instant handed to the runner must
	// agree on the calendar day.
	zone := time.FixedZone("UTC+10", 10*60*60)
	at := time.Date(2026, 3, 15, 0, 5, 0, 0, zone)
	marker := &fakeMarker{date: "2026-03-14"}
	runner := &fakeRunner{}
	s := newTestScheduler(marker, runner, at)

	if err := s.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if marker.date != "2026-03-15" {
		t.Fatalf("marker = %q, want 2026-03-15", marker.date)
	}
	if got := runner.lastAt.Format("2006-01-02"); got != "2026-03-15" {
		t.Fatalf("runner saw day %q, marker recorded 2026-03-15", got)
	}
	if !runner.lastAt.Equal(at) {
		t.Fatalf("runner resetAt = %v, want %v", runner.lastAt, at)
	}
}

func TestUntilNextMidnight(t *testing.T) {
	now := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)
	if got := untilNextMidnight(now); got != 30*time.Minute {
		t.Fatalf("got %v, want 30m", got)
	}
	// Just past midnight arms a near-full-day timer.
	now = time.Date(2024, 3, 6, 0, 0, 1, 0, time.UTC)
	if got := untilNextMidnight(now); got != 24*time.Hour-time.Second {
		t.Fatalf("got %v, want 23h59m59s", got)
	}
}
