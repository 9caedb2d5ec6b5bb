package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiobrief/audio-brief-service/internal/assistant"
	"github.com/audiobrief/audio-brief-service/internal/audio"
	"github.com/audiobrief/audio-brief-service/internal/briefing"
	"github.com/audiobrief/audio-brief-service/internal/config"
	"github.com/audiobrief/audio-brief-service/internal/metrics"
	"github.com/audiobrief/audio-brief-service/internal/playback"
)

// AssistantStats reports remote API client statistics for the stats
// endpoints.
type AssistantStats interface {
	GetStats() assistant.Stats
}

// HTTPServer provides the HTTP API for briefings and monitoring
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	briefings *briefing.Manager
	assistant AssistantStats
	player    *playback.Controller
	metrics   *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, briefings *briefing.Manager, assistantStats AssistantStats,
	player *playback.Controller, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		briefings: briefings,
		assistant: assistantStats,
		player:    player,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Briefing collection: upload and listing
	mux.HandleFunc("/briefings", h.withMetrics("/briefings", h.handleBriefings))

	// Briefing sub-resources: detail, speech synthesis, WAV download,
	// playback control, chat
	mux.HandleFunc("/briefings/", h.withMetrics("/briefings/{id}", h.handleBriefingDetail))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors to HTTP status codes
func (h *HTTPServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway // remote assistant failures by default

	switch {
	case errors.Is(err, briefing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, briefing.ErrNoSummaryAudio):
		status = http.StatusConflict
	case errors.Is(err, audio.ErrDecode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, audio.ErrPayloadTooLarge):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, playback.ErrResource):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}

	h.logger.Warn("Request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// handleBriefings implements the /briefings collection endpoint
func (h *HTTPServer) handleBriefings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleUpload(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload ingests a multipart recording upload and creates a briefing
func (h *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Briefing.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest,
			map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondJSON(w, http.StatusBadRequest,
			map[string]string{"error": fmt.Sprintf("failed to read upload: %v", err)})
		return
	}

	b, err := h.briefings.Create(r.Context(), header.Filename, data)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, b.GetInfo())
}

// handleList implements GET /briefings
func (h *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	infos := h.briefings.GetAll()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_briefings": len(infos),
		"timestamp":       time.Now().UTC(),
		"briefings":       infos,
	})
}

// handleBriefingDetail routes /briefings/{id} and its sub-resources
func (h *HTTPServer) handleBriefingDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/briefings/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "Briefing ID required", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		h.handleGet(w, r, id)
	case "speech":
		h.handleSynthesize(w, r, id)
	case "summary.wav":
		h.handleDownload(w, r, id)
	case "playback":
		h.handlePlayback(w, r, id)
	case "chat":
		h.handleChat(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// handleGet implements GET /briefings/{id}
func (h *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, err := h.briefings.Get(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, b.GetInfo())
}

// handleSynthesize implements POST /briefings/{id}/speech
func (h *HTTPServer) handleSynthesize(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.briefings.SynthesizeSummary(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	b, err := h.briefings.Get(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, b.GetInfo())
}

// handleDownload implements GET /briefings/{id}/summary.wav
func (h *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wav, filename, err := h.briefings.SummaryWAV(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(wav)))
	w.Write(wav)
}

// handlePlayback implements POST /briefings/{id}/playback
func (h *HTTPServer) handlePlayback(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.briefings.TogglePlayback(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"briefing_id": id,
		"state":       state.String(),
	})
}

// chatRequest is the POST /briefings/{id}/chat request body
type chatRequest struct {
	Message string `json:"message"`
}

// handleChat implements POST /briefings/{id}/chat
func (h *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest,
			map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Message == "" {
		respondJSON(w, http.StatusBadRequest,
			map[string]string{"error": "message cannot be empty"})
		return
	}

	reply, err := h.briefings.Chat(r.Context(), id, req.Message)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"briefing_id": id,
		"reply":       reply,
	})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	managerStats := h.briefings.GetStats()
	assistantStats := h.assistant.GetStats()
	playerStats := h.player.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "audio-brief-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"briefings": map[string]interface{}{
				"status": "running",
				"active": managerStats.Active,
			},
			"assistant": map[string]interface{}{
				"status":          "running",
				"total_requests":  assistantStats.TotalRequests,
				"success_rate":    assistantStats.SuccessRate,
				"active_requests": assistantStats.ActiveRequests,
			},
			"playback": map[string]interface{}{
				"status": h.player.State().String(),
				"starts": playerStats.Starts,
				"stops":  playerStats.Stops,
			},
		},
	}

	respondJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
		},
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"channels":    h.config.Audio.Channels,
			"bit_depth":   h.config.Audio.BitDepth,
		},
		"assistant": map[string]interface{}{
			"chat_model":       h.config.Assistant.ChatModel,
			"transcribe_model": h.config.Assistant.TranscribeModel,
			"speech_model":     h.config.Assistant.SpeechModel,
			"voice":            h.config.Assistant.Voice,
			"timeout":          h.config.Assistant.Timeout,
			"max_retries":      h.config.Assistant.MaxRetries,
			"max_concurrent":   h.config.Assistant.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"playback": map[string]interface{}{
			"enabled": h.config.Playback.Enabled,
			"command": h.config.Playback.Command,
		},
		"briefing": map[string]interface{}{
			"idle_timeout":     h.config.Briefing.IdleTimeout,
			"max_upload_bytes": h.config.Briefing.MaxUploadBytes,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	respondJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"briefings": h.briefings.GetStats(),
		"assistant": h.assistant.GetStats(),
		"playback":  h.player.GetStats(),
	}

	respondJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Audio Brief Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                            "API documentation",
			"POST /briefings":                  "Upload a recording (multipart field 'file')",
			"GET /briefings":                   "List all briefings",
			"GET /briefings/{id}":              "Get briefing details",
			"POST /briefings/{id}/speech":      "Synthesize summary speech",
			"GET /briefings/{id}/summary.wav":  "Download summary audio as WAV",
			"POST /briefings/{id}/playback":    "Toggle local summary playback",
			"POST /briefings/{id}/chat":        "Chat about the briefing content",
			"GET /health":                      "Service health check",
			"GET /config":                      "Get service configuration",
			"GET /stats":                       "Get service statistics",
			"GET /metrics":                     "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	respondJSON(w, http.StatusOK, apiDoc)
}
