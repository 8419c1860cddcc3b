package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder receives pipeline events
type Recorder interface {
	RecordArtifact(category, outcome string)
	RecordConversionFailure(category string)
	RecordRun(mode string, duration time.Duration)
}

// PrometheusRecorder implements Recorder with a dedicated registry so a batch
// run can push its metrics to a Pushgateway when it finishes.
type PrometheusRecorder struct {
	registry           *prometheus.Registry
	artifactsTotal     *prometheus.CounterVec
	conversionFailures *prometheus.CounterVec
	runDuration        *prometheus.GaugeVec
	lastRunTimestamp   prometheus.Gauge
}

// NewPrometheusRecorder creates a recorder and registers its metrics
func NewPrometheusRecorder() *PrometheusRecorder {
	recorder := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		artifactsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_pipeline_artifacts_total",
				Help: "Total number of artifacts handled, by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		conversionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_pipeline_conversion_failures_total",
				Help: "Total number of failed image conversions",
			},
			[]string{"category"},
		),
		runDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asset_pipeline_run_duration_seconds",
				Help: "Duration of the last pipeline run in seconds",
			},
			[]string{"mode"},
		),
		lastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "asset_pipeline_last_run_timestamp_seconds",
				Help: "Unix time the last pipeline run finished",
			},
		),
	}

	recorder.registry.MustRegister(
		recorder.artifactsTotal,
		recorder.conversionFailures,
		recorder.runDuration,
		recorder.lastRunTimestamp,
	)

	return recorder
}

// RecordArtifact counts one artifact outcome
func (r *PrometheusRecorder) RecordArtifact(category, outcome string) {
	r.artifactsTotal.WithLabelValues(category, outcome).Inc()
}

// RecordConversionFailure counts one failed conversion
func (r *PrometheusRecorder) RecordConversionFailure(category string) {
	r.conversionFailures.WithLabelValues(category).Inc()
}

// RecordRun records the duration of a finished run
func (r *PrometheusRecorder) RecordRun(mode string, duration time.Duration) {
	r.runDuration.WithLabelValues(mode).Set(duration.Seconds())
	r.lastRunTimestamp.SetToCurrentTime()
}

// Registry exposes the underlying registry
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Push sends the collected metrics to a Pushgateway
func (r *PrometheusRecorder) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(r.registry).PushContext(ctx)
}

// Nop discards every event
type Nop struct{}

func (Nop) RecordArtifact(string, string)   {}
func (Nop) RecordConversionFailure(string)  {}
func (Nop) RecordRun(string, time.Duration) {}

var (
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = Nop{}
)
