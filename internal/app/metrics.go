package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcomes recorded by Metrics.
const (
	OutcomeSkipped  = "skipped"  // not admitted
	OutcomeInactive = "inactive" // detector score below threshold
	OutcomeActive   = "active"   // keypoints produced
	OutcomeDropped  = "dropped"  // per-frame error
)

// Metrics provides observability for the pose pipeline.
type Metrics struct {
	Registry *prometheus.Registry

	// Frames by outcome
	Frames *prometheus.CounterVec

	// Emitted clap events
	Claps prometheus.Counter

	// Time from admission to publish of a frame
	FrameLatency prometheus.Histogram

	// Detector score of the last processed frame
	DetectionScore prometheus.Gauge
}

// NewMetrics registers the pipeline metrics on reg. A nil reg gets a fresh
// registry, so several pipelines can coexist in one process.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tala_pipeline_frames_total",
			Help: "Frames seen by the pose pipeline by outcome",
		}, []string{"outcome"}),

		Claps: factory.NewCounter(prometheus.CounterOpts{
			Name: "tala_claps_total",
			Help: "Clap events emitted",
		}),

		FrameLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tala_pipeline_frame_duration_seconds",
			Help:    "Duration of detect, landmark and gesture processing per admitted frame",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		DetectionScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tala_detection_score",
			Help: "Pose detector score of the most recent processed frame",
		}),
	}
}

// IncFrames records one frame with the given outcome.
func (m *Metrics) IncFrames(outcome string) {
	if m != nil {
		m.Frames.WithLabelValues(outcome).Inc()
	}
}

// IncClaps records one clap event.
func (m *Metrics) IncClaps() {
	if m != nil {
		m.Claps.Inc()
	}
}

// ObserveFrame records the processing time and score of a frame.
func (m *Metrics) ObserveFrame(d time.Duration, score float64) {
	if m != nil {
		m.FrameLatency.Observe(d.Seconds())
		m.DetectionScore.Set(score)
	}
}
