// Package server provides the HTTP API for the audio brief service:
// briefing upload and retrieval, summary speech synthesis and download,
// local playback control, chat, and operational endpoints for health,
// configuration, statistics, and Prometheus metrics.
package server
