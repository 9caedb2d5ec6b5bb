package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/audiobrief/audio-brief-service/internal/audio"
)

// ExecDevice renders audio by piping a WAV stream to an external player
// process such as ffplay, aplay, or afplay. The process reads the full file
// from stdin and exits when playback completes.
type ExecDevice struct {
	command string
	args    []string
	logger  *slog.Logger
}

// NewExecDevice creates a player-process output device. The command must be
// resolvable on PATH.
func NewExecDevice(command string, args []string, logger *slog.Logger) (*ExecDevice, error) {
	if command == "" {
		return nil, fmt.Errorf("player command cannot be empty")
	}

	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("player command not available: %w", err)
	}

	return &ExecDevice{
		command: command,
		args:    args,
		logger:  logger,
	}, nil
}

// execStream is one running player process.
type execStream struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches the player process with the buffer re-encoded as a WAV
// stream on stdin. done fires only on natural process exit, not after Stop.
// ctx governs activation only; once the process is running its lifetime is
// bounded by the audio length and Stop, not by the caller's context, which
// in the HTTP path is cancelled as soon as the response is written.
func (d *ExecDevice) Start(ctx context.Context, buf *audio.Buffer, done func()) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wav, err := audio.BuildWAV(quantize(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to encode playback stream: %w", err)
	}

	procCtx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(procCtx, d.command, d.args...)
	cmd.Stdin = bytes.NewReader(wav)

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start player process %s: %w", d.command, err)
	}

	d.logger.Debug("Player process started",
		slog.String("command", d.command),
		slog.Int("wav_bytes", len(wav)),
	)

	s := &execStream{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		close(s.done)

		if procCtx.Err() != nil {
			// Stopped explicitly; suppress the completion callback.
			return
		}

		if err != nil {
			d.logger.Warn("Player process exited with error",
				slog.String("command", d.command),
				slog.String("error", err.Error()),
			)
		}

		done()
	}()

	return s, nil
}

// Stop kills the player process and waits for it to exit.
func (s *execStream) Stop() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Close releases the device. The external player holds no persistent
// resources between streams, so this is a no-op.
func (d *ExecDevice) Close() error {
	return nil
}

// quantize converts normalized samples back to raw PCM-16 bytes for the
// player pipe, clamping to the int16 range.
func quantize(buf *audio.Buffer) []byte {
	out := make([]byte, len(buf.Samples)*2)
	for i, f := range buf.Samples {
		v := f * 32768.0
		if v > 32767.0 {
			v = 32767.0
		}
		if v < -32768.0 {
			v = -32768.0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
