// Package briefing manages audio briefing sessions: the transcript and
// summary produced for an uploaded recording, the synthesized summary
// audio, the chat conversation about the content, and playback of the
// summary through the shared output controller.
package briefing
