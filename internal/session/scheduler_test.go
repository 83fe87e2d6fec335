package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	testThreshold = 50
	testDebounce  = 2 * time.Second
	testTimeout   = 20 * time.Second
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ThresholdChars: testThreshold,
		Debounce:       testDebounce,
		Timeout:        testTimeout,
	}
}

// text returns a string of exactly n characters.
func text(n int) string {
	return strings.Repeat("a", n)
}

func waitText(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis")
		return ""
	}
}

func expectNoText(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected analysis of %d chars", len(s))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerBelowThresholdDoesNotArm(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		return nil
	}, nil)
	defer s.Stop()

	s.Observe(text(testThreshold - 1))
	mock.Add(10 * time.Second)
	expectNoText(t, analyzed)
}

func TestSchedulerDebouncesAndUsesFreshestText(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		return nil
	}, nil)
	defer s.Stop()

	s.Observe(text(60))
	mock.Add(time.Second)
	expectNoText(t, analyzed)

	// New text within the window re-arms the timer and supersedes the payload.
	s.Observe(text(120))
	mock.Add(time.Second)
	expectNoText(t, analyzed)

	mock.Add(time.Second)
	got := waitText(t, analyzed)
	if len(got) != 120 {
		t.Fatalf("analyzed %d chars, want the freshest 120", len(got))
	}

	// Only one pass for the whole burst.
	expectNoText(t, analyzed)
}

func TestSchedulerThresholdRelativeToLastSuccess(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		return nil
	}, nil)
	defer s.Stop()

	s.Observe(text(60))
	mock.Add(testDebounce)
	waitText(t, analyzed)

	// 40 new chars since the successful pass is below the threshold.
	s.Observe(text(100))
	mock.Add(10 * time.Second)
	expectNoText(t, analyzed)

	// 50 new chars qualifies.
	s.Observe(text(110))
	mock.Add(testDebounce)
	if got := waitText(t, analyzed); len(got) != 110 {
		t.Fatalf("analyzed %d chars, want 110", len(got))
	}
}

func TestSchedulerSkipsIdenticalText(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		return nil
	}, nil)
	defer s.Stop()

	s.Observe(text(60))
	mock.Add(testDebounce)
	waitText(t, analyzed)

	// Re-running the already-analyzed text is a successful no-op.
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow on identical text: %v", err)
	}
	expectNoText(t, analyzed)
}

func TestSchedulerFailureDoesNotAdvanceMarker(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	fail := true
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		if fail {
			return errors.New("analysis endpoint down")
		}
		return nil
	}, nil)
	defer s.Stop()

	s.Observe(text(60))
	mock.Add(testDebounce)
	waitText(t, analyzed)

	// Same text qualifies again because the failed pass advanced nothing.
	fail = false
	s.Observe(text(60))
	mock.Add(testDebounce)
	if got := waitText(t, analyzed); len(got) != 60 {
		t.Fatalf("analyzed %d chars, want 60", len(got))
	}
}

func TestSchedulerForgoesTriggerWhileInFlight(t *testing.T) {
	mock := clock.NewMock()
	started := make(chan string, 4)
	release := make(chan struct{})
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		started <- fullText
		<-release
		return nil
	}, nil)

	s.Observe(text(60))
	mock.Add(testDebounce)
	first := waitText(t, started)
	if len(first) != 60 {
		t.Fatalf("first run analyzed %d chars", len(first))
	}

	// A qualifying burst lands while the first run is blocked; its debounce
	// fires during the run and the pass is foregone.
	s.Observe(text(130))
	mock.Add(testDebounce)
	expectNoText(t, started)

	// Releasing the first run starts nothing: skipped triggers are not
	// queued or retried.
	close(release)
	expectNoText(t, started)

	// The marker only advanced to the first run's text, so the next append
	// qualifies on its own.
	s.Observe(text(140))
	mock.Add(testDebounce)
	if got := waitText(t, started); len(got) != 140 {
		t.Fatalf("analyzed %d chars after re-qualifying append, want 140", len(got))
	}
	s.Stop()
}

func TestSchedulerRunNowBypassesThreshold(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		return nil
	}, nil)
	defer s.Stop()

	s.Observe(text(10))
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if got := waitText(t, analyzed); len(got) != 10 {
		t.Fatalf("analyzed %d chars, want 10", len(got))
	}
}

func TestSchedulerRunNowReportsFailure(t *testing.T) {
	mock := clock.NewMock()
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		return errors.New("analysis endpoint down")
	}, nil)
	defer s.Stop()

	s.Observe(text(10))
	if err := s.RunNow(context.Background()); err == nil {
		t.Fatal("RunNow swallowed the analysis failure")
	}

	// The failed pass advanced nothing, so the same text runs again.
	if err := s.RunNow(context.Background()); err == nil {
		t.Fatal("second RunNow swallowed the analysis failure")
	}
}

func TestSchedulerRunNowWhileInFlightErrors(t *testing.T) {
	mock := clock.NewMock()
	started := make(chan string, 4)
	release := make(chan struct{})
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		started <- fullText
		<-release
		return nil
	}, nil)

	s.Observe(text(60))
	mock.Add(testDebounce)
	waitText(t, started)

	s.Observe(text(130))
	if err := s.RunNow(context.Background()); err == nil {
		t.Fatal("RunNow during an in-flight pass did not error")
	}

	close(release)
	s.Stop()
}

func TestSchedulerCancelsOverlongRuns(t *testing.T) {
	mock := clock.NewMock()
	started := make(chan struct{})
	canceled := make(chan struct{})
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	}, nil)

	s.Observe(text(60))
	mock.Add(testDebounce)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never started")
	}

	mock.Add(testTimeout)
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not cancel the run")
	}
	s.Stop()
}

func TestSchedulerStopDisarms(t *testing.T) {
	mock := clock.NewMock()
	analyzed := make(chan string, 4)
	s := NewScheduler(mock, testSchedulerConfig(), func(ctx context.Context, fullText string) error {
		analyzed <- fullText
		return nil
	}, nil)

	s.Observe(text(60))
	s.Stop()
	mock.Add(10 * time.Second)
	expectNoText(t, analyzed)

	// Observations and triggers after stop are ignored.
	s.Observe(text(200))
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow after stop: %v", err)
	}
	expectNoText(t, analyzed)
}
