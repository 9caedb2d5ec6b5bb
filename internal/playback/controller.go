package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/audiobrief/audio-brief-service/internal/audio"
)

// ErrResource indicates the output device could not be acquired or a stream
// could not be started on it.
var ErrResource = errors.New("playback resource error")

// Stream is a live output stream started on a Device.
type Stream interface {
	// Stop halts output immediately. Stopping a finished stream is a no-op.
	Stop() error
}

// Device is an audio output capable of rendering sample buffers. Start
// begins playback from the first frame and calls done exactly once when all
// frames have been rendered, unless the stream is stopped first.
type Device interface {
	Start(ctx context.Context, buf *audio.Buffer, done func()) (Stream, error)
	Close() error
}

// DeviceOpener acquires the output device. The controller calls it lazily
// on the first play and reuses the device for subsequent sessions.
type DeviceOpener func() (Device, error)

// State identifies the controller's position in its play/stop cycle.
type State int

const (
	StateIdle State = iota
	StatePlaying
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// session binds one live output stream to the buffer it renders.
type session struct {
	stream Stream
	buf    *audio.Buffer
}

// Controller mediates access to the audio output device. At most one
// session is live at any time; starting a new one stops the old one first,
// so two sessions can never overlap.
type Controller struct {
	opener DeviceOpener
	logger *slog.Logger

	mu      sync.Mutex
	device  Device
	current *session
	gen     uint64 // bumped on every stop; fences stale completions

	// Statistics
	startCount uint64
	stopCount  uint64
}

// NewController creates a playback controller around the given device
// opener. The device itself is not acquired until the first Play.
func NewController(opener DeviceOpener, logger *slog.Logger) *Controller {
	return &Controller{
		opener: opener,
		logger: logger,
	}
}

// Play starts rendering buf from frame 0. Any session that is already live
// is stopped first. Device activation happens outside the controller lock,
// so a Stop issued while activation is still in flight wins: the freshly
// started stream is halted before any audio is delivered.
func (c *Controller) Play(ctx context.Context, buf *audio.Buffer) error {
	if buf == nil || len(buf.Samples) == 0 {
		return fmt.Errorf("%w: no samples to play", ErrResource)
	}

	c.mu.Lock()
	c.stopLocked()

	if c.device == nil {
		dev, err := c.opener()
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("%w: failed to acquire output device: %v", ErrResource, err)
		}
		c.device = dev
	}

	gen := c.gen
	device := c.device
	c.mu.Unlock()

	stream, err := device.Start(ctx, buf, func() { c.onFinished(gen) })
	if err != nil {
		return fmt.Errorf("%w: failed to start stream: %v", ErrResource, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		// A stop arrived during activation; cancellation takes priority
		// over completing setup.
		if err := stream.Stop(); err != nil {
			c.logger.Warn("Failed to stop superseded stream", slog.String("error", err.Error()))
		}
		return nil
	}

	c.current = &session{stream: stream, buf: buf}
	c.startCount++

	c.logger.Debug("Playback started",
		slog.Int("frames", buf.FrameCount()),
		slog.Duration("duration", buf.Duration()),
	)

	return nil
}

// Stop halts the live session, if any. Stopping an idle controller is a
// no-op. After an explicit stop, the completion callback of the stopped
// session never fires.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked stops the current session and bumps the generation so that
// in-flight activations and pending completions are discarded. Caller must
// hold c.mu.
func (c *Controller) stopLocked() {
	c.gen++

	if c.current == nil {
		return
	}

	if err := c.current.stream.Stop(); err != nil {
		c.logger.Warn("Failed to stop output stream", slog.String("error", err.Error()))
	}
	c.current = nil
	c.stopCount++

	c.logger.Debug("Playback stopped")
}

// Toggle starts playback when idle and stops it when playing. This is the
// single control the UI layer binds to. It returns the state the controller
// ends up in.
func (c *Controller) Toggle(ctx context.Context, buf *audio.Buffer) (State, error) {
	if c.State() == StatePlaying {
		c.Stop()
		return StateIdle, nil
	}

	if err := c.Play(ctx, buf); err != nil {
		return StateIdle, err
	}
	return StatePlaying, nil
}

// onFinished handles natural completion reported by the device. Completions
// belonging to sessions that were explicitly stopped or replaced carry a
// stale generation and are ignored.
func (c *Controller) onFinished(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.current == nil {
		return
	}

	c.current = nil
	c.logger.Debug("Playback finished")
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return StatePlaying
	}
	return StateIdle
}

// CurrentBuffer returns the buffer bound to the live session, or nil when
// the controller is idle.
func (c *Controller) CurrentBuffer() *audio.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	return c.current.buf
}

// Stats reports how many sessions the controller has started and stopped.
type Stats struct {
	State  string `json:"state"`
	Starts uint64 `json:"starts"`
	Stops  uint64 `json:"stops"`
}

// GetStats returns controller statistics.
func (c *Controller) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := StateIdle
	if c.current != nil {
		state = StatePlaying
	}

	return Stats{
		State:  state.String(),
		Starts: c.startCount,
		Stops:  c.stopCount,
	}
}

// Close stops any live session and releases the output device.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	if c.device == nil {
		return nil
	}

	err := c.device.Close()
	c.device = nil
	return err
}
