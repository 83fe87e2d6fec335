package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/audio"
	"github.com/vatbq/lia/internal/domain/entities"
	"github.com/vatbq/lia/internal/realtime"
	"github.com/vatbq/lia/internal/transcript"
	"github.com/vatbq/lia/pkg/ai"
)

// Analyzer judges objective completion against a transcript and returns the
// complete action item and insight lists.
type Analyzer interface {
	AnalyzeTranscript(ctx context.Context, req ai.AnalysisRequest) (*ai.AnalysisResult, error)
}

// Transcriber streams audio out and hands completed utterances back through
// the handler it was constructed with.
type Transcriber interface {
	Connect(ctx context.Context) error
	Send(frame audio.Frame) error
	Commit() error
	Disconnect()
	State() realtime.ConnState
}

// RecordingStore persists a finished session's audio.
type RecordingStore interface {
	UploadRecording(ctx context.Context, callID string, wav []byte) (string, error)
}

// Archiver persists the final session state onto the call record.
type Archiver interface {
	FinishCall(ctx context.Context, callID string, snap Snapshot, fragments []entities.Fragment, recordingURL string) error
}

// ControllerConfig wires one live session.
type ControllerConfig struct {
	CallID     string
	Objectives []entities.Objective
	Scheduler  SchedulerConfig

	Capturer    *audio.Capturer
	Transcriber Transcriber
	Analyzer    Analyzer
	Recorder    *audio.Recorder
	Recordings  RecordingStore
	Archive     Archiver

	Clock  clock.Clock
	Logger *zap.Logger
}

// Controller runs one live call session: it pumps captured audio to the
// transcriber, folds completed utterances into the transcript, schedules
// analysis passes, and reconciles their results.
type Controller struct {
	callID      string
	capturer    *audio.Capturer
	transcriber Transcriber
	analyzer    Analyzer
	recorder    *audio.Recorder
	recordings  RecordingStore
	archive     Archiver
	logger      *zap.Logger

	aggregator *transcript.Aggregator
	reconciler *Reconciler
	scheduler  *Scheduler

	mu       sync.Mutex
	started  bool
	stopped  bool
	unsub    func()
	pumpDone chan struct{}
}

// NewController assembles a session controller. The transcriber must have
// been constructed with the controller's HandleTranscript as its transcript
// handler.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	c := &Controller{
		callID:      cfg.CallID,
		capturer:    cfg.Capturer,
		transcriber: cfg.Transcriber,
		analyzer:    cfg.Analyzer,
		recorder:    cfg.Recorder,
		recordings:  cfg.Recordings,
		archive:     cfg.Archive,
		logger:      logger.With(zap.String("call_id", cfg.CallID)),
		aggregator:  transcript.NewAggregator(),
		reconciler:  NewReconciler(cfg.Objectives),
	}
	c.scheduler = NewScheduler(clk, cfg.Scheduler, c.runAnalysis, c.logger)
	return c
}

// Start connects the transcriber and begins pumping audio.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return apperrors.ErrSessionAlreadyActive(c.callID)
	}
	c.started = true
	c.mu.Unlock()

	if err := c.capturer.Setup(ctx); err != nil {
		return err
	}
	if err := c.transcriber.Connect(ctx); err != nil {
		return err
	}

	frames, unsub := c.capturer.Subscribe(64)
	if err := c.capturer.Start(ctx); err != nil {
		unsub()
		c.transcriber.Disconnect()
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.unsub = unsub
	c.pumpDone = done
	c.mu.Unlock()

	go c.pump(frames, done)
	c.logger.Info("session started")
	return nil
}

func (c *Controller) pump(frames <-chan audio.Frame, done chan struct{}) {
	defer close(done)
	for frame := range frames {
		if c.recorder != nil {
			c.recorder.Write(frame)
		}
		if err := c.transcriber.Send(frame); err != nil {
			c.logger.Warn("dropping audio frame", zap.Error(err))
		}
	}
}

// HandleTranscript receives one completed utterance from the transcriber.
func (c *Controller) HandleTranscript(itemID, text string) {
	if !c.aggregator.Append(itemID, text) {
		return
	}
	full := c.aggregator.FullText()
	c.logger.Debug("transcript fragment",
		zap.String("item_id", itemID),
		zap.Int("total_chars", len(full)))
	c.scheduler.Observe(full)
}

// HandleTransportError reacts to transcriber failures. The session keeps its
// accumulated state; there is no automatic reconnect.
func (c *Controller) HandleTransportError(err error) {
	c.logger.Error("transcription transport failed", zap.Error(err))
}

func (c *Controller) runAnalysis(ctx context.Context, fullText string) error {
	pending := c.reconciler.IncompleteObjectives()
	tasks := make([]ai.TaskRef, 0, len(pending))
	for _, o := range pending {
		tasks = append(tasks, ai.TaskRef{ID: o.ID, Title: o.Title, Description: o.Description})
	}

	req := ai.AnalysisRequest{
		Tasks:               tasks,
		Transcription:       fullText,
		ExistingActionItems: actionItemPayloads(c.reconciler.ActionItems()),
		ExistingInsights:    insightPayloads(c.reconciler.Insights()),
	}

	result, err := c.analyzer.AnalyzeTranscript(ctx, req)
	if err != nil {
		return apperrors.ErrAnalysisCallFailed(err)
	}
	c.reconciler.Apply(result)
	c.logger.Info("analysis applied",
		zap.Int("incomplete_objectives", len(c.reconciler.IncompleteObjectives())),
		zap.Int("action_items", len(c.reconciler.ActionItems())),
		zap.Int("insights", len(c.reconciler.Insights())))
	return nil
}

// AnalyzeNow runs an immediate analysis pass and reports its outcome. Unlike
// the debounced automatic path, which only logs failures, a manual trigger
// hands the error back to the caller.
func (c *Controller) AnalyzeNow(ctx context.Context) error {
	return c.scheduler.RunNow(ctx)
}

// CompleteActionItem marks an action item done by hand.
func (c *Controller) CompleteActionItem(id string) error {
	return c.reconciler.CompleteActionItem(id)
}

// State returns the current reconciled session state.
func (c *Controller) State() Snapshot {
	return c.reconciler.Snapshot()
}

// Connection reports the transcription connection indicator.
func (c *Controller) Connection() realtime.ConnState {
	return c.transcriber.State()
}

// Fragments returns the transcript fragments accepted so far.
func (c *Controller) Fragments() []entities.Fragment {
	return c.aggregator.Fragments()
}

// FullText returns the accumulated transcript text.
func (c *Controller) FullText() string {
	return c.aggregator.FullText()
}

// Stop tears the session down: flushes the remote audio buffer, stops
// analysis, and archives the final state. Archival failures are logged, not
// returned; the in-memory snapshot is always handed back.
func (c *Controller) Stop(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return c.reconciler.Snapshot()
	}
	c.stopped = true
	unsub := c.unsub
	pumpDone := c.pumpDone
	c.mu.Unlock()

	if err := c.transcriber.Commit(); err != nil {
		c.logger.Debug("final commit failed", zap.Error(err))
	}

	if err := c.capturer.TearDown(); err != nil {
		c.logger.Warn("capturer teardown failed", zap.Error(err))
	}
	if unsub != nil {
		unsub()
	}
	if pumpDone != nil {
		<-pumpDone
	}
	c.transcriber.Disconnect()
	c.scheduler.Stop()

	snap := c.reconciler.Snapshot()
	go c.archiveSession(snap)

	c.logger.Info("session stopped",
		zap.Int("fragments", c.aggregator.Len()),
		zap.Int("completed_objectives", len(snap.CompletedObjectives)))
	return snap
}

func (c *Controller) archiveSession(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recordingURL := ""
	if c.recordings != nil && c.recorder != nil && c.recorder.Len() > 0 {
		url, err := c.recordings.UploadRecording(ctx, c.callID, c.recorder.WAV())
		if err != nil {
			c.logger.Error("recording upload failed", zap.Error(err))
		} else {
			recordingURL = url
		}
	}

	if c.archive != nil {
		if err := c.archive.FinishCall(ctx, c.callID, snap, c.aggregator.Fragments(), recordingURL); err != nil {
			c.logger.Error("session archive failed", zap.Error(err))
		}
	}
}

func actionItemPayloads(items []entities.ActionItem) []ai.ActionItemPayload {
	out := make([]ai.ActionItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, ai.ActionItemPayload{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			Priority:    item.Priority,
			Completed:   item.Completed,
			Timestamp:   item.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

func insightPayloads(insights []entities.Insight) []ai.InsightPayload {
	out := make([]ai.InsightPayload, 0, len(insights))
	for _, in := range insights {
		out = append(out, ai.InsightPayload{
			ID:          in.ID,
			Title:       in.Title,
			Description: in.Description,
			Type:        in.Type,
			Timestamp:   in.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}
