// Package playback owns the audio output stream lifecycle. A controller
// holds at most one live session, stops it before starting a replacement,
// and exposes the play/stop toggle bound to the user-facing control. The
// output device is injected, so the state machine is testable without real
// audio hardware.
package playback
