package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audio brief service
type Metrics struct {
	// Briefing lifecycle metrics
	BriefingsCreated prometheus.Counter
	BriefingsEvicted prometheus.Counter
	ActiveBriefings  prometheus.Gauge
	UploadSize       prometheus.Histogram

	// Assistant request metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	SummarizationRequests  prometheus.Counter
	SummarizationFailures  prometheus.Counter
	SummarizationDuration  prometheus.Histogram
	SynthesisRequests      prometheus.Counter
	SynthesisFailures      prometheus.Counter
	SynthesisDuration      prometheus.Histogram
	ChatExchanges          prometheus.Counter
	ChatFailures           prometheus.Counter

	// Audio pipeline metrics
	WAVDownloads     prometheus.Counter
	WAVBytesBuilt    prometheus.Counter
	PlaybackToggles  prometheus.Counter
	PlaybackFailures prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Briefing lifecycle metrics
		BriefingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_briefings_created_total",
			Help: "Total number of briefings created",
		}),
		BriefingsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_briefings_evicted_total",
			Help: "Total number of idle briefings evicted",
		}),
		ActiveBriefings: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "brief_active_briefings",
			Help: "Current number of active briefings",
		}),
		UploadSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "brief_upload_size_bytes",
			Help:    "Size of uploaded audio files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
		}),

		// Assistant request metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "brief_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		SummarizationRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_summarization_requests_total",
			Help: "Total number of summarization requests sent",
		}),
		SummarizationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_summarization_failures_total",
			Help: "Total number of failed summarization requests",
		}),
		SummarizationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "brief_summarization_duration_seconds",
			Help:    "Duration of summarization requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SynthesisRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_synthesis_requests_total",
			Help: "Total number of speech synthesis requests sent",
		}),
		SynthesisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_synthesis_failures_total",
			Help: "Total number of failed speech synthesis requests",
		}),
		SynthesisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "brief_synthesis_duration_seconds",
			Help:    "Duration of speech synthesis requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ChatExchanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_chat_exchanges_total",
			Help: "Total number of completed chat exchanges",
		}),
		ChatFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_chat_failures_total",
			Help: "Total number of failed chat exchanges",
		}),

		// Audio pipeline metrics
		WAVDownloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_wav_downloads_total",
			Help: "Total number of WAV files served for download",
		}),
		WAVBytesBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_wav_bytes_built_total",
			Help: "Total number of WAV bytes built for download",
		}),
		PlaybackToggles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_playback_toggles_total",
			Help: "Total number of playback toggle operations",
		}),
		PlaybackFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brief_playback_failures_total",
			Help: "Total number of failed playback operations",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brief_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brief_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brief_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordBriefingCreated increments the briefings created counter and
// records the upload size
func (m *Metrics) RecordBriefingCreated(uploadBytes int) {
	m.BriefingsCreated.Inc()
	m.UploadSize.Observe(float64(uploadBytes))
}

// SetActiveBriefings sets the current number of active briefings
func (m *Metrics) SetActiveBriefings(count int) {
	m.ActiveBriefings.Set(float64(count))
}

// RecordTranscription records a transcription request outcome
func (m *Metrics) RecordTranscription(durationSeconds float64, err error) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if err != nil {
		m.TranscriptionFailures.Inc()
	}
}

// RecordSummarization records a summarization request outcome
func (m *Metrics) RecordSummarization(durationSeconds float64, err error) {
	m.SummarizationRequests.Inc()
	m.SummarizationDuration.Observe(durationSeconds)
	if err != nil {
		m.SummarizationFailures.Inc()
	}
}

// RecordSynthesis records a speech synthesis request outcome
func (m *Metrics) RecordSynthesis(durationSeconds float64, err error) {
	m.SynthesisRequests.Inc()
	m.SynthesisDuration.Observe(durationSeconds)
	if err != nil {
		m.SynthesisFailures.Inc()
	}
}

// RecordChat records a chat exchange outcome
func (m *Metrics) RecordChat(err error) {
	if err != nil {
		m.ChatFailures.Inc()
		return
	}
	m.ChatExchanges.Inc()
}

// RecordWAVDownload records a served WAV download
func (m *Metrics) RecordWAVDownload(sizeBytes int) {
	m.WAVDownloads.Inc()
	m.WAVBytesBuilt.Add(float64(sizeBytes))
}

// RecordPlaybackToggle records a playback toggle outcome
func (m *Metrics) RecordPlaybackToggle(err error) {
	m.PlaybackToggles.Inc()
	if err != nil {
		m.PlaybackFailures.Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
