package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_runs_active",
		Help: "Evaluation runs currently executing",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Evaluation runs finished, by outcome",
	}, []string{"outcome"})

	RunsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_runs_rejected_total",
		Help: "Audio submissions dropped because the run pool was full",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_e2e_duration_seconds",
		Help:    "End-to-end latency from audio receipt to terminal event",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0, 60.0, 120.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	AcousticUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acoustic_unavailable_total",
		Help: "Runs that continued without acoustic features",
	})

	JudgeParse = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_parse_total",
		Help: "Judge responses by parse mode (direct, embedded, sentinel)",
	}, []string{"mode"})

	AudioBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audio_clip_bytes",
		Help:    "Size of received audio clips",
		Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Open WebSocket connections",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rooms_active",
		Help: "Rooms with at least one connection",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "room_broadcasts_total",
		Help: "Messages broadcast to rooms, by message type",
	}, []string{"type"})

	SinkDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_sinks_dropped_total",
		Help: "Sinks removed after a failed send",
	})
)
