package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Fixed format of synthesized speech audio. The sample rate is not
// self-describing in the raw payload; it is part of the API contract.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

// Buffer holds decoded audio samples normalized to [-1.0, 1.0], ready to be
// handed to an output device.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float64
}

// FrameCount returns the number of audio frames in the buffer. For mono
// audio one frame is one sample.
func (b *Buffer) FrameCount() int {
	return len(b.Samples) / b.Channels
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(float64(b.FrameCount()) / float64(b.SampleRate) * float64(time.Second))
}

// DecodePCM reinterprets raw bytes as signed 16-bit little-endian mono PCM
// at 24 kHz and produces a normalized sample buffer. Each sample is divided
// by 32768, so -32768 maps to exactly -1.0 while 32767 maps to just under
// 1.0. The asymmetry is the standard PCM-16 convention and is deliberate;
// samples are not rescaled to a symmetric range.
func DecodePCM(pcm []byte) (*Buffer, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: PCM byte length must be even, got %d", ErrDecode, len(pcm))
	}

	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float64(s) / 32768.0
	}

	return &Buffer{
		SampleRate: SampleRate,
		Channels:   Channels,
		Samples:    samples,
	}, nil
}
