package session

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/audio"
	"github.com/vatbq/lia/internal/domain/entities"
	"github.com/vatbq/lia/internal/realtime"
	"github.com/vatbq/lia/pkg/config"
)

// CredentialSource mints ephemeral tokens for the transcription service.
type CredentialSource interface {
	EphemeralToken(ctx context.Context) (string, error)
}

// Session is one live call session with its audio inlet.
type Session struct {
	Controller *Controller
	Device     *audio.StreamDevice
}

// Manager owns the live sessions, at most one per call.
type Manager struct {
	cfg         *config.Config
	credentials CredentialSource
	analyzer    Analyzer
	recordings  RecordingStore
	archive     Archiver
	clock       clock.Clock
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Recordings and archive may be nil
// when the backing services are not configured.
func NewManager(cfg *config.Config, credentials CredentialSource, analyzer Analyzer, recordings RecordingStore, archive Archiver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:         cfg,
		credentials: credentials,
		analyzer:    analyzer,
		recordings:  recordings,
		archive:     archive,
		clock:       clock.New(),
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// StartSession spins up a live session for the call. A second start for the
// same call fails until the first session is stopped.
func (m *Manager) StartSession(ctx context.Context, call *entities.CallRecord) (*Session, error) {
	m.mu.Lock()
	if _, exists := m.sessions[call.ID]; exists {
		m.mu.Unlock()
		return nil, apperrors.ErrSessionAlreadyActive(call.ID)
	}
	// reserve the slot before the slow connect work
	m.sessions[call.ID] = nil
	m.mu.Unlock()

	session, err := m.buildSession(ctx, call)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, call.ID)
		m.mu.Unlock()
		return nil, err
	}

	if err := session.Controller.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.sessions, call.ID)
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[call.ID] = session
	m.mu.Unlock()
	m.logger.Info("session registered", zap.String("call_id", call.ID))
	return session, nil
}

func (m *Manager) buildSession(ctx context.Context, call *entities.CallRecord) (*Session, error) {
	token, err := m.credentials.EphemeralToken(ctx)
	if err != nil {
		return nil, err
	}

	device := audio.NewStreamDevice(64)
	sampleRate := m.cfg.Session.SampleRate

	var ctrl *Controller
	client := realtime.NewClient(realtime.SessionOptions{
		URL:                m.cfg.OpenAI.RealtimeURL,
		Token:              token,
		TranscriptionModel: m.cfg.OpenAI.TranscriptionModel,
		VADThreshold:       m.cfg.Session.VADThreshold,
		PrefixPaddingMs:    m.cfg.Session.PrefixPaddingMs,
		SilenceDurationMs:  m.cfg.Session.SilenceDurationMs,
	}, func(itemID, text string) {
		ctrl.HandleTranscript(itemID, text)
	}, func(err error) {
		ctrl.HandleTransportError(err)
	}, m.logger)

	ctrl = NewController(ControllerConfig{
		CallID:     call.ID,
		Objectives: call.ParsedObjectives,
		Scheduler: SchedulerConfig{
			ThresholdChars: m.cfg.Session.AnalysisThresholdChars,
			Debounce:       m.cfg.Session.AnalysisDebounce,
			Timeout:        m.cfg.Session.AnalysisTimeout,
		},
		Capturer:    audio.NewCapturer(device, sampleRate, m.logger),
		Transcriber: client,
		Analyzer:    m.analyzer,
		Recorder:    audio.NewRecorder(sampleRate),
		Recordings:  m.recordings,
		Archive:     m.archive,
		Clock:       m.clock,
		Logger:      m.logger,
	})

	return &Session{Controller: ctrl, Device: device}, nil
}

// Get returns the live session for a call.
func (m *Manager) Get(callID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[callID]
	if !ok || session == nil {
		return nil, apperrors.ErrSessionNotActive(callID)
	}
	return session, nil
}

// StopSession stops a live session and returns its final state.
func (m *Manager) StopSession(ctx context.Context, callID string) (Snapshot, error) {
	m.mu.Lock()
	session, ok := m.sessions[callID]
	if !ok || session == nil {
		m.mu.Unlock()
		return Snapshot{}, apperrors.ErrSessionNotActive(callID)
	}
	delete(m.sessions, callID)
	m.mu.Unlock()

	session.Device.Close()
	return session.Controller.Stop(ctx), nil
}

// StopAll stops every live session, used during shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.StopSession(ctx, id); err != nil {
			m.logger.Warn("failed to stop session", zap.String("call_id", id), zap.Error(err))
		}
	}
}
