package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/audiobrief/audio-brief-service/internal/audio"
)

type fakeStream struct {
	mu    sync.Mutex
	stops int
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeDevice struct {
	mu        sync.Mutex
	streams   []*fakeStream
	dones     []func()
	startHook func()
	startErr  error
	closed    bool
}

func (d *fakeDevice) Start(ctx context.Context, buf *audio.Buffer, done func()) (Stream, error) {
	if d.startHook != nil {
		d.startHook()
	}
	if d.startErr != nil {
		return nil, d.startErr
	}

	s := &fakeStream{}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.dones = append(d.dones, done)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBuffer() *audio.Buffer {
	return &audio.Buffer{SampleRate: audio.SampleRate, Channels: 1, Samples: []float64{0, 0.25, -0.25, 0.5}}
}

func TestPlayFromIdle(t *testing.T) {
	device := &fakeDevice{}
	opens := 0
	ctrl := NewController(func() (Device, error) {
		opens++
		return device, nil
	}, testLogger())

	buf := testBuffer()
	if err := ctrl.Play(context.Background(), buf); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if ctrl.State() != StatePlaying {
		t.Errorf("expected playing state, got %v", ctrl.State())
	}

	if opens != 1 {
		t.Errorf("expected device to be opened once, got %d", opens)
	}

	if ctrl.CurrentBuffer() != buf {
		t.Error("expected current buffer to be the played buffer")
	}
}

func TestPlayReplacesLiveSession(t *testing.T) {
	device := &fakeDevice{}
	opens := 0
	ctrl := NewController(func() (Device, error) {
		opens++
		return device, nil
	}, testLogger())

	bufA := testBuffer()
	bufB := testBuffer()

	if err := ctrl.Play(context.Background(), bufA); err != nil {
		t.Fatalf("Play(A) failed: %v", err)
	}
	if err := ctrl.Play(context.Background(), bufB); err != nil {
		t.Fatalf("Play(B) failed: %v", err)
	}

	if len(device.streams) != 2 {
		t.Fatalf("expected 2 streams started, got %d", len(device.streams))
	}

	// A must be fully stopped before B starts; exactly one session live.
	if device.streams[0].stopCount() < 1 {
		t.Error("expected the first stream to be stopped before the replacement started")
	}

	if device.streams[1].stopCount() != 0 {
		t.Error("expected the second stream to still be live")
	}

	if ctrl.State() != StatePlaying {
		t.Errorf("expected playing state, got %v", ctrl.State())
	}

	if ctrl.CurrentBuffer() != bufB {
		t.Error("expected the live session to be bound to the second buffer")
	}

	// Device handle is reused across sessions
	if opens != 1 {
		t.Errorf("expected device to be opened once, got %d", opens)
	}
}

func TestStopIdleIsNoOp(t *testing.T) {
	device := &fakeDevice{}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	ctrl.Stop()
	ctrl.Stop()

	if ctrl.State() != StateIdle {
		t.Errorf("expected idle state, got %v", ctrl.State())
	}

	if stats := ctrl.GetStats(); stats.Stops != 0 {
		t.Errorf("expected 0 stopped sessions, got %d", stats.Stops)
	}
}

func TestNaturalCompletion(t *testing.T) {
	device := &fakeDevice{}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	if err := ctrl.Play(context.Background(), testBuffer()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	// Device reports all frames rendered
	device.dones[0]()

	if ctrl.State() != StateIdle {
		t.Errorf("expected idle state after completion, got %v", ctrl.State())
	}

	if ctrl.CurrentBuffer() != nil {
		t.Error("expected session reference to be cleared")
	}
}

func TestCompletionAfterExplicitStopIgnored(t *testing.T) {
	device := &fakeDevice{}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	if err := ctrl.Play(context.Background(), testBuffer()); err != nil {
		t.Fatalf("Play(A) failed: %v", err)
	}
	doneA := device.dones[0]
	ctrl.Stop()

	bufB := testBuffer()
	if err := ctrl.Play(context.Background(), bufB); err != nil {
		t.Fatalf("Play(B) failed: %v", err)
	}

	// A's completion fires late; it must not tear down B's session.
	doneA()

	if ctrl.State() != StatePlaying {
		t.Errorf("expected playing state, got %v", ctrl.State())
	}

	if ctrl.CurrentBuffer() != bufB {
		t.Error("expected the live session to remain bound to the second buffer")
	}
}

func TestStopDuringActivationWins(t *testing.T) {
	device := &fakeDevice{}
	var ctrl *Controller
	ctrl = NewController(func() (Device, error) { return device, nil }, testLogger())

	// Stop lands while the device is still activating the stream
	device.startHook = func() { ctrl.Stop() }

	if err := ctrl.Play(context.Background(), testBuffer()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if ctrl.State() != StateIdle {
		t.Errorf("expected idle state after cancelled activation, got %v", ctrl.State())
	}

	if len(device.streams) != 1 {
		t.Fatalf("expected 1 stream started, got %d", len(device.streams))
	}

	if device.streams[0].stopCount() < 1 {
		t.Error("expected the freshly activated stream to be stopped before playback")
	}
}

func TestToggle(t *testing.T) {
	device := &fakeDevice{}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	buf := testBuffer()

	state, err := ctrl.Toggle(context.Background(), buf)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if state != StatePlaying {
		t.Errorf("expected toggle to start playback, got %v", state)
	}

	state, err = ctrl.Toggle(context.Background(), buf)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if state != StateIdle {
		t.Errorf("expected toggle to stop playback, got %v", state)
	}
}

func TestPlayOpenerError(t *testing.T) {
	ctrl := NewController(func() (Device, error) {
		return nil, errors.New("no output device")
	}, testLogger())

	err := ctrl.Play(context.Background(), testBuffer())
	if err == nil {
		t.Fatal("expected error when device cannot be acquired")
	}

	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource, got %v", err)
	}

	if ctrl.State() != StateIdle {
		t.Errorf("expected idle state after failed play, got %v", ctrl.State())
	}
}

func TestPlayStartError(t *testing.T) {
	device := &fakeDevice{startErr: errors.New("device busy")}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	err := ctrl.Play(context.Background(), testBuffer())
	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource, got %v", err)
	}

	if ctrl.State() != StateIdle {
		t.Errorf("expected idle state after failed start, got %v", ctrl.State())
	}
}

func TestPlayEmptyBuffer(t *testing.T) {
	device := &fakeDevice{}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	err := ctrl.Play(context.Background(), &audio.Buffer{SampleRate: audio.SampleRate, Channels: 1})
	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource for empty buffer, got %v", err)
	}
}

func TestClose(t *testing.T) {
	device := &fakeDevice{}
	ctrl := NewController(func() (Device, error) { return device, nil }, testLogger())

	if err := ctrl.Play(context.Background(), testBuffer()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !device.closed {
		t.Error("expected device to be released")
	}

	if device.streams[0].stopCount() < 1 {
		t.Error("expected live stream to be stopped on close")
	}
}

func TestQuantizeClamps(t *testing.T) {
	buf := &audio.Buffer{
		SampleRate: audio.SampleRate,
		Channels:   1,
		Samples:    []float64{-1.0, 1.0, 0.0},
	}

	pcm := quantize(buf)
	if len(pcm) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(pcm))
	}

	// -1.0 maps back to -32768, 1.0 clamps to 32767
	if pcm[0] != 0x00 || pcm[1] != 0x80 {
		t.Errorf("expected -32768 encoding, got [%#x %#x]", pcm[0], pcm[1])
	}

	if pcm[2] != 0xFF || pcm[3] != 0x7F {
		t.Errorf("expected 32767 encoding, got [%#x %#x]", pcm[2], pcm[3])
	}
}
