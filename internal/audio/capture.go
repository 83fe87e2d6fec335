package audio

import (
	"context"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
)

// State tracks the lifecycle of a Capturer.
type State int

const (
	StateNotSetup State = iota
	StateSettingUp
	StateReady
	StateOpen
	StatePaused
	StateError
)

var stateNames = map[State]string{
	StateNotSetup:  "not_setup",
	StateSettingUp: "setting_up",
	StateReady:     "ready",
	StateOpen:      "open",
	StatePaused:    "paused",
	StateError:     "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Chunk is a burst of PCM16 mono samples at the rate the source produced them.
type Chunk struct {
	Samples    []int16
	SampleRate int
}

// Frame is a resampled burst ready for downstream consumers.
type Frame []int16

// Device is an audio source. Open returns a channel that closes when the
// device stops producing.
type Device interface {
	Open(ctx context.Context) (<-chan Chunk, error)
	Close() error
}

// Capturer pulls chunks from a device, resamples them to the target rate, and
// fans frames out to subscribers. Slow subscribers drop frames rather than
// stall the pump.
type Capturer struct {
	device     Device
	targetRate int
	logger     *zap.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int]chan Frame
	nextSubID   int
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewCapturer creates a capturer in the not-setup state.
func NewCapturer(device Device, targetRate int, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{
		device:      device,
		targetRate:  targetRate,
		logger:      logger,
		state:       StateNotSetup,
		subscribers: make(map[int]chan Frame),
	}
}

// State returns the current lifecycle state.
func (c *Capturer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Setup prepares the capturer. It is idempotent once ready.
func (c *Capturer) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady, StateOpen, StatePaused:
		return nil
	case StateSettingUp:
		return nil
	}

	c.state = StateSettingUp
	if c.device == nil {
		c.state = StateError
		return apperrors.ErrDeviceUnavailable(nil)
	}
	c.state = StateReady
	return nil
}

// Start opens the device and begins pumping frames. Starting while paused
// resumes delivery.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateOpen:
		c.mu.Unlock()
		return nil
	case StatePaused:
		c.state = StateOpen
		c.mu.Unlock()
		return nil
	case StateReady:
	default:
		c.mu.Unlock()
		return apperrors.ErrDeviceUnavailable(nil)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	chunks, err := c.device.Open(pumpCtx)
	if err != nil {
		cancel()
		c.state = StateError
		c.mu.Unlock()
		return apperrors.ErrDeviceUnavailable(err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateOpen
	done := c.done
	c.mu.Unlock()

	go c.pump(pumpCtx, chunks, done)
	return nil
}

// Pause suspends frame delivery without closing the device.
func (c *Capturer) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateOpen {
		c.state = StatePaused
	}
}

// Stop closes the device and returns the capturer to ready.
func (c *Capturer) Stop() error {
	c.mu.Lock()
	if c.state != StateOpen && c.state != StatePaused {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.state = StateReady
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return c.device.Close()
}

// TearDown releases everything and returns to not-setup.
func (c *Capturer) TearDown() error {
	err := c.Stop()

	c.mu.Lock()
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	c.state = StateNotSetup
	c.mu.Unlock()
	return err
}

// Subscribe registers a frame consumer with the given channel buffer. The
// returned function unsubscribes and closes the channel.
func (c *Capturer) Subscribe(buffer int) (<-chan Frame, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Frame, buffer)
	c.subscribers[id] = ch

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, unsub
}

func (c *Capturer) pump(ctx context.Context, chunks <-chan Chunk, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				c.mu.Lock()
				if c.state == StateOpen || c.state == StatePaused {
					c.state = StateError
				}
				c.mu.Unlock()
				c.logger.Warn("audio device stream ended unexpectedly")
				return
			}
			c.deliver(chunk)
		}
	}
}

func (c *Capturer) deliver(chunk Chunk) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	frame := Frame(Resample(chunk.Samples, chunk.SampleRate, c.targetRate))
	subs := make([]chan Frame, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- frame:
		default:
			// subscriber is behind, drop the frame for it
		}
	}
}

// StreamDevice is a Device fed by pushed chunks, used when audio arrives over
// the network instead of from local hardware.
type StreamDevice struct {
	mu     sync.Mutex
	ch     chan Chunk
	closed bool
}

// NewStreamDevice creates a push-fed device with the given chunk buffer.
func NewStreamDevice(buffer int) *StreamDevice {
	return &StreamDevice{ch: make(chan Chunk, buffer)}
}

// Open returns the chunk stream.
func (d *StreamDevice) Open(ctx context.Context) (<-chan Chunk, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, apperrors.ErrDeviceUnavailable(nil)
	}
	return d.ch, nil
}

// Push enqueues a chunk. Pushes after close and pushes into a full buffer are
// dropped.
func (d *StreamDevice) Push(samples []int16, sampleRate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- Chunk{Samples: samples, SampleRate: sampleRate}:
	default:
	}
}

// Close ends the stream.
func (d *StreamDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	return nil
}
