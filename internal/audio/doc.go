// Package audio implements the binary audio pipeline for synthesized speech:
// base64 decoding of API payloads, conversion of raw PCM-16 bytes into
// normalized sample buffers for playback, and encoding of the same bytes
// into self-contained WAV files for download.
package audio
