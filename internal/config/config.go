package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Audio     AudioConfig     `yaml:"audio"`
	Assistant AssistantConfig `yaml:"assistant"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Briefing  BriefingConfig  `yaml:"briefing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// AudioConfig contains the fixed audio format of synthesized speech
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// AssistantConfig contains remote language-model API configuration
type AssistantConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	ChatModel       string `yaml:"chat_model"`
	TranscribeModel string `yaml:"transcribe_model"`
	SpeechModel     string `yaml:"speech_model"`
	Voice           string `yaml:"voice"`
	Timeout         int    `yaml:"timeout"` // seconds
	MaxRetries      int    `yaml:"max_retries"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
}

// PlaybackConfig contains local audio playback configuration
type PlaybackConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// BriefingConfig contains briefing session configuration
type BriefingConfig struct {
	IdleTimeout    int   `yaml:"idle_timeout"` // seconds, 0 disables eviction
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Secrets may reference environment variables, e.g. ${OPENAI_API_KEY}
	config.Assistant.APIKey = os.ExpandEnv(config.Assistant.APIKey)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Briefing.Validate(); err != nil {
		return fmt.Errorf("briefing config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates the audio format. The synthesized speech contract is
// fixed; these values are configuration only so a misconfigured deployment
// fails loudly at startup instead of producing broken audio.
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 24000 {
		return fmt.Errorf("sample_rate must be 24000 Hz for synthesized speech, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono) for synthesized speech, got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16 for synthesized speech, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates assistant configuration
func (a *AssistantConfig) Validate() error {
	if a.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty")
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.Enabled && p.Command == "" {
		return fmt.Errorf("command cannot be empty when playback is enabled")
	}

	return nil
}

// Validate validates briefing configuration
func (b *BriefingConfig) Validate() error {
	if b.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout cannot be negative, got %d", b.IdleTimeout)
	}

	if b.MaxUploadBytes < 1 {
		return fmt.Errorf("max_upload_bytes must be at least 1 byte, got %d", b.MaxUploadBytes)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the assistant request timeout as a time.Duration
func (a *AssistantConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetIdleTimeoutDuration returns the briefing idle timeout as a time.Duration
func (b *BriefingConfig) GetIdleTimeoutDuration() time.Duration {
	return time.Duration(b.IdleTimeout) * time.Second
}
