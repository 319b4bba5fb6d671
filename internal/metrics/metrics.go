// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sorter_frames_processed_total",
		Help: "Frames that went through the pipeline, by outcome.",
	}, []string{"outcome"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sorter_frames_dropped_total",
		Help: "Frames dropped because the intake queue was full, by source.",
	}, []string{"source"})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sorter_dispatches_total",
		Help: "Actuation commands sent to the controller, by result.",
	}, []string{"result"})

	LogAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sorter_log_appends_total",
		Help: "Detection log writes, by result.",
	}, []string{"result"})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sorter_broadcast_dropped_total",
		Help: "Messages dropped because an observer queue was full.",
	})

	Observers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sorter_observers",
		Help: "Connected dashboard observers.",
	})

	StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sorter_status_updates_total",
		Help: "Actuator status messages received, by result.",
	}, []string{"result"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sorter_pipeline_duration_seconds",
		Help:    "Time spent processing one frame.",
		Buckets: prometheus.DefBuckets,
	})
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
