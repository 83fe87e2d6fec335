package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
)

// AnalyzeFunc runs one analysis pass over the full transcript text.
type AnalyzeFunc func(ctx context.Context, fullText string) error

// Scheduler decides when transcript analysis runs. A pass is armed once the
// transcript has grown enough since the last successful pass, then debounced
// so rapid-fire utterances collapse into one call. At most one analysis is in
// flight at a time; a trigger landing during a run is foregone, not queued.
// Because a skipped or failed pass never advances the last-analyzed marker,
// the next qualifying append re-arms on its own.
type Scheduler struct {
	clock     clock.Clock
	threshold int
	debounce  time.Duration
	timeout   time.Duration
	analyze   AnalyzeFunc
	logger    *zap.Logger

	mu           sync.Mutex
	timer        *clock.Timer
	latestText   string
	armedText    string
	lastAnalyzed string
	inFlight     bool
	stopped      bool
	wg           sync.WaitGroup
}

// SchedulerConfig bundles the scheduler tuning knobs.
type SchedulerConfig struct {
	ThresholdChars int
	Debounce       time.Duration
	Timeout        time.Duration
}

// NewScheduler creates a disarmed scheduler. Pass clock.New() in production
// and clock.NewMock() in tests.
func NewScheduler(clk clock.Clock, cfg SchedulerConfig, analyze AnalyzeFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:     clk,
		threshold: cfg.ThresholdChars,
		debounce:  cfg.Debounce,
		timeout:   cfg.Timeout,
		analyze:   analyze,
		logger:    logger,
	}
}

// Observe feeds the scheduler the current full transcript text. It arms or
// re-arms the debounce timer when enough new text has accumulated since the
// last successful analysis.
func (s *Scheduler) Observe(fullText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.latestText = fullText

	if fullText == s.lastAnalyzed {
		return
	}
	if len(fullText)-len(s.lastAnalyzed) < s.threshold {
		return
	}

	s.armedText = fullText
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = s.clock.AfterFunc(s.debounce, s.fire)
}

// RunNow runs an immediate analysis of the latest text, bypassing the growth
// threshold and the debounce, and reports the pass's outcome. An empty or
// already-analyzed transcript is a successful no-op. A pass already in
// flight is an error; mutual exclusion holds for manual triggers too.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.disarmLocked()
	text := s.latestText
	if text == "" || text == s.lastAnalyzed {
		s.mu.Unlock()
		return nil
	}
	if s.inFlight {
		s.mu.Unlock()
		return apperrors.ErrAnalysisInProgress()
	}
	s.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()

	return s.runPass(ctx, text)
}

// Stop disarms the scheduler and waits for any in-flight analysis to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.disarmLocked()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer = nil
	if s.stopped {
		return
	}
	// The freshest observed text supersedes whatever armed the timer.
	text := s.latestText
	if text == "" {
		text = s.armedText
	}
	s.startLocked(text)
}

// startLocked launches an analysis run unless one is already in flight.
// Callers must hold s.mu.
func (s *Scheduler) startLocked(text string) {
	if text == "" || text == s.lastAnalyzed {
		return
	}
	if s.inFlight {
		// foregone, not queued: the marker has not advanced, so the next
		// qualifying append re-arms
		s.logger.Debug("analysis in flight, skipping trigger")
		return
	}

	s.inFlight = true
	s.wg.Add(1)
	go s.runPass(context.Background(), text)
}

// runPass executes one analysis under the watchdog. The caller must have set
// the in-flight flag and incremented the wait group.
func (s *Scheduler) runPass(parent context.Context, text string) error {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(parent)
	watchdog := s.clock.AfterFunc(s.timeout, cancel)
	err := s.analyze(ctx, text)
	watchdog.Stop()
	cancel()

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		// a failed pass does not advance the marker, so the same growth
		// re-qualifies for the next attempt
		s.logger.Warn("transcript analysis failed", zap.Error(err))
	} else {
		s.lastAnalyzed = text
	}
	s.mu.Unlock()
	return err
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
