// Package assistant wraps the remote language-model API used for
// transcription, summarization, chat, and speech synthesis. The rest of the
// service treats these operations as opaque collaborators: text goes in,
// text or base64-encoded PCM audio comes out. Retries and concurrency
// limits live here; the audio pipeline itself never retries.
package assistant
