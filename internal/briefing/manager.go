package briefing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiobrief/audio-brief-service/internal/assistant"
	"github.com/audiobrief/audio-brief-service/internal/audio"
	"github.com/audiobrief/audio-brief-service/internal/metrics"
	"github.com/audiobrief/audio-brief-service/internal/playback"
)

// Assistant is the remote language-model collaborator the manager
// delegates transcription, summarization, chat, and speech synthesis to.
type Assistant interface {
	Transcribe(ctx context.Context, filename string, data []byte) (string, error)
	Summarize(ctx context.Context, transcript string) (string, error)
	Chat(ctx context.Context, history []assistant.Message, message string) (string, error)
	Synthesize(ctx context.Context, text string) (string, error)
}

var (
	// ErrNotFound indicates an unknown briefing ID.
	ErrNotFound = errors.New("briefing not found")
	// ErrNoSummaryAudio indicates the summary audio has not been synthesized yet.
	ErrNoSummaryAudio = errors.New("summary audio not synthesized")
)

// Briefing is one processed audio upload and everything derived from it.
type Briefing struct {
	ID         string
	Filename   string
	Transcript string
	Summary    string
	CreatedAt  time.Time

	// Synthesized summary audio, base64-encoded raw PCM-16 at 24 kHz.
	// Held encoded until a consumer needs it; each consumer decodes its
	// own copy.
	encodedAudio string

	// Chat conversation about the content, seeded with a system message
	// carrying the transcript and summary.
	history []assistant.Message

	lastActivity time.Time

	mu sync.RWMutex
}

// Info is a read-only snapshot of a briefing for API responses.
type Info struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Transcript   string    `json:"transcript"`
	Summary      string    `json:"summary"`
	HasAudio     bool      `json:"has_audio"`
	ChatMessages int       `json:"chat_messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// GetInfo returns a snapshot of the briefing
func (b *Briefing) GetInfo() Info {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// The seeding system message is not part of the visible conversation
	visible := 0
	for _, m := range b.history {
		if m.Role != assistant.RoleSystem {
			visible++
		}
	}

	return Info{
		ID:           b.ID,
		Filename:     b.Filename,
		Transcript:   b.Transcript,
		Summary:      b.Summary,
		HasAudio:     b.encodedAudio != "",
		ChatMessages: visible,
		CreatedAt:    b.CreatedAt,
		LastActivity: b.lastActivity,
	}
}

// History returns a copy of the visible chat conversation.
func (b *Briefing) History() []assistant.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	messages := make([]assistant.Message, 0, len(b.history))
	for _, m := range b.history {
		if m.Role != assistant.RoleSystem {
			messages = append(messages, m)
		}
	}
	return messages
}

func (b *Briefing) touch() {
	b.mu.Lock()
	b.lastActivity = time.Now()
	b.mu.Unlock()
}

// Manager owns all active briefings and orchestrates the remote assistant
// and the local audio pipeline around them.
type Manager struct {
	assistant   Assistant
	player      *playback.Controller
	metrics     *metrics.Metrics // may be nil
	logger      *slog.Logger
	idleTimeout time.Duration

	sessions map[string]*Briefing
	mu       sync.RWMutex

	// Statistics
	created uint64
	evicted uint64

	// Cleanup management
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// ManagerStats represents manager statistics
type ManagerStats struct {
	Active  int    `json:"active"`
	Created uint64 `json:"created"`
	Evicted uint64 `json:"evicted"`
}

// NewManager creates a briefing manager and starts its idle-eviction
// routine. A zero idleTimeout disables eviction; a nil metrics disables
// metric recording.
func NewManager(a Assistant, player *playback.Controller, appMetrics *metrics.Metrics, logger *slog.Logger, idleTimeout time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		assistant:   a,
		player:      player,
		metrics:     appMetrics,
		logger:      logger,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Briefing),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go m.runCleanup()

	return m
}

// Create ingests an uploaded recording: transcribe it, summarize the
// transcript, and store the result as a new briefing. Nothing is stored if
// either remote call fails.
func (m *Manager) Create(ctx context.Context, filename string, data []byte) (*Briefing, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("uploaded audio is empty")
	}

	start := time.Now()
	transcript, err := m.assistant.Transcribe(ctx, filename, data)
	if m.metrics != nil {
		m.metrics.RecordTranscription(time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	start = time.Now()
	summary, err := m.assistant.Summarize(ctx, transcript)
	if m.metrics != nil {
		m.metrics.RecordSummarization(time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}

	now := time.Now()
	b := &Briefing{
		ID:         uuid.NewString(),
		Filename:   filename,
		Transcript: transcript,
		Summary:    summary,
		CreatedAt:  now,
		history: []assistant.Message{
			{Role: assistant.RoleSystem, Content: chatContext(transcript, summary)},
		},
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[b.ID] = b
	m.created++
	active := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordBriefingCreated(len(data))
		m.metrics.SetActiveBriefings(active)
	}

	m.logger.Info("Created briefing",
		slog.String("briefing_id", b.ID),
		slog.String("filename", filename),
		slog.Int("audio_bytes", len(data)),
		slog.Int("transcript_chars", len(transcript)),
	)

	return b, nil
}

// chatContext builds the system message that grounds the chat conversation
// in the uploaded content.
func chatContext(transcript, summary string) string {
	return fmt.Sprintf("You are discussing an audio recording with the user. "+
		"Answer questions about its content.\n\nTranscript:\n%s\n\nSummary:\n%s",
		transcript, summary)
}

// Get retrieves a briefing by ID.
func (m *Manager) Get(id string) (*Briefing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

// GetAll returns snapshots of all active briefings.
func (m *Manager) GetAll() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.sessions))
	for _, b := range m.sessions {
		infos = append(infos, b.GetInfo())
	}
	return infos
}

// SynthesizeSummary generates speech audio for the briefing summary and
// stores it base64-encoded. A failure leaves the transcript, summary, and
// any previously synthesized audio untouched.
func (m *Manager) SynthesizeSummary(ctx context.Context, id string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	b.touch()

	b.mu.RLock()
	summary := b.Summary
	b.mu.RUnlock()

	if summary == "" {
		return fmt.Errorf("briefing %s has no summary to synthesize", id)
	}

	start := time.Now()
	encoded, err := m.assistant.Synthesize(ctx, summary)
	if m.metrics != nil {
		m.metrics.RecordSynthesis(time.Since(start).Seconds(), err)
	}
	if err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}

	// Reject payloads the pipeline cannot consume before storing anything
	pcm, err := audio.DecodeBase64(encoded)
	if err != nil {
		return err
	}
	if len(pcm)%2 != 0 {
		return fmt.Errorf("%w: synthesized PCM has incomplete final sample", audio.ErrDecode)
	}

	b.mu.Lock()
	b.encodedAudio = encoded
	b.mu.Unlock()

	m.logger.Info("Synthesized summary audio",
		slog.String("briefing_id", id),
		slog.Int("pcm_bytes", len(pcm)),
	)

	return nil
}

// SummaryWAV returns the synthesized summary audio as a downloadable WAV
// file. The suggested filename is fixed.
func (m *Manager) SummaryWAV(id string) ([]byte, string, error) {
	b, err := m.Get(id)
	if err != nil {
		return nil, "", err
	}
	b.touch()

	b.mu.RLock()
	encoded := b.encodedAudio
	b.mu.RUnlock()

	if encoded == "" {
		return nil, "", fmt.Errorf("%w: briefing %s", ErrNoSummaryAudio, id)
	}

	pcm, err := audio.DecodeBase64(encoded)
	if err != nil {
		return nil, "", err
	}

	wav, err := audio.BuildWAV(pcm)
	if err != nil {
		return nil, "", err
	}

	if m.metrics != nil {
		m.metrics.RecordWAVDownload(len(wav))
	}

	return wav, "summary.wav", nil
}

// TogglePlayback decodes the summary audio and toggles play/stop on the
// shared output controller.
func (m *Manager) TogglePlayback(ctx context.Context, id string) (playback.State, error) {
	b, err := m.Get(id)
	if err != nil {
		return playback.StateIdle, err
	}
	b.touch()

	b.mu.RLock()
	encoded := b.encodedAudio
	b.mu.RUnlock()

	if encoded == "" {
		return playback.StateIdle, fmt.Errorf("%w: briefing %s", ErrNoSummaryAudio, id)
	}

	pcm, err := audio.DecodeBase64(encoded)
	if err != nil {
		return playback.StateIdle, err
	}

	buf, err := audio.DecodePCM(pcm)
	if err != nil {
		return playback.StateIdle, err
	}

	state, err := m.player.Toggle(ctx, buf)
	if m.metrics != nil {
		m.metrics.RecordPlaybackToggle(err)
	}
	return state, err
}

// Chat sends a user message about the briefing content and records the
// exchange. A failed request leaves the conversation history untouched.
func (m *Manager) Chat(ctx context.Context, id, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("chat message cannot be empty")
	}

	b, err := m.Get(id)
	if err != nil {
		return "", err
	}
	b.touch()

	b.mu.RLock()
	history := make([]assistant.Message, len(b.history))
	copy(history, b.history)
	b.mu.RUnlock()

	reply, err := m.assistant.Chat(ctx, history, message)
	if m.metrics != nil {
		m.metrics.RecordChat(err)
	}
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}

	b.mu.Lock()
	b.history = append(b.history,
		assistant.Message{Role: assistant.RoleUser, Content: message},
		assistant.Message{Role: assistant.RoleAssistant, Content: reply},
	)
	b.mu.Unlock()

	return reply, nil
}

// GetStats returns manager statistics
func (m *Manager) GetStats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		Active:  len(m.sessions),
		Created: m.created,
		Evicted: m.evicted,
	}
}

// runCleanup periodically evicts briefings idle for longer than the
// configured timeout.
func (m *Manager) runCleanup() {
	defer close(m.done)

	if m.idleTimeout <= 0 {
		<-m.ctx.Done()
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.ctx.Done():
			return
		}
	}
}

// evictIdle removes briefings whose last activity is older than the idle
// timeout.
func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, b := range m.sessions {
		b.mu.RLock()
		idle := b.lastActivity.Before(cutoff)
		b.mu.RUnlock()

		if idle {
			delete(m.sessions, id)
			m.evicted++
			if m.metrics != nil {
				m.metrics.BriefingsEvicted.Inc()
			}
			m.logger.Info("Evicted idle briefing",
				slog.String("briefing_id", id),
				slog.Duration("idle_timeout", m.idleTimeout),
			)
		}
	}

	if m.metrics != nil {
		m.metrics.SetActiveBriefings(len(m.sessions))
	}
}

// Stop shuts down the manager and its cleanup routine.
func (m *Manager) Stop() {
	m.cancel()
	<-m.done

	m.logger.Info("Briefing manager stopped",
		slog.Int("active_briefings", m.GetStats().Active),
	)
}
