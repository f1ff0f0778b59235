// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import "github.com/prometheus/client_golang/prometheus"

// PipelineMonitor is the in-process Prometheus instrumentation for one
// Allocator, grounded on the teacher's
// internal/scheduling/lib.FilterWeigherPipelineMonitor (same metric
// shapes: per-stage run duration, removed-subject counts, pipeline
// run duration, subjects in/out, request counter). It is purely
// in-process counters; scraping them over HTTP is the host's job, not
// this library's (spec §1, §6: no network I/O, no CLI).
type PipelineMonitor struct {
	name string

	stageRunTimer       *prometheus.HistogramVec
	stageRemovedServers *prometheus.HistogramVec
	pipelineRunTimer    *prometheus.HistogramVec
	serversInObserver   *prometheus.HistogramVec
	serversOutObserver  *prometheus.HistogramVec
	requestCounter      *prometheus.CounterVec
	noServersCounter    *prometheus.CounterVec
}

// NewPipelineMonitor registers and returns a new PipelineMonitor. name
// distinguishes multiple Allocator instances in the same process (the
// teacher's "pipeline" label).
func NewPipelineMonitor(name string) *PipelineMonitor {
	return &PipelineMonitor{
		name: name,
		stageRunTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_stage_run_duration_seconds",
			Help:    "Duration of one pipeline stage run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline", "stage"}),
		stageRemovedServers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_stage_removed_servers",
			Help:    "Number of servers removed by a pipeline stage.",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline", "stage"}),
		pipelineRunTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_pipeline_run_duration_seconds",
			Help:    "Duration of a full allocation pipeline run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		serversInObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_pipeline_servers_in",
			Help:    "Number of candidate servers entering the pipeline.",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline"}),
		serversOutObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_pipeline_servers_out",
			Help:    "Number of surviving servers leaving the pipeline.",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline"}),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_allocate_requests_total",
			Help: "Total number of Allocate calls.",
		}, []string{"pipeline"}),
		noServersCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_allocate_no_servers_total",
			Help: "Total number of Allocate calls that found no surviving server.",
		}, []string{"pipeline"}),
	}
}

// timePipeline starts a timer for one Allocate call; the returned func
// records the observation when called.
func (m *PipelineMonitor) timePipeline() func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.pipelineRunTimer.WithLabelValues(m.name))
	return func() { timer.ObserveDuration() }
}

// timeStage starts a timer for one stage invocation.
func (m *PipelineMonitor) timeStage(stage string) func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.stageRunTimer.WithLabelValues(m.name, stage))
	return func() { timer.ObserveDuration() }
}

func (m *PipelineMonitor) observeStage(trace StageTrace) {
	if m == nil {
		return
	}
	m.stageRemovedServers.WithLabelValues(m.name, trace.Name).Observe(float64(trace.Before - trace.After))
}

func (m *PipelineMonitor) observeRun(serversIn, serversOut int, found bool) {
	if m == nil {
		return
	}
	m.serversInObserver.WithLabelValues(m.name).Observe(float64(serversIn))
	m.serversOutObserver.WithLabelValues(m.name).Observe(float64(serversOut))
	m.requestCounter.WithLabelValues(m.name).Inc()
	if !found {
		m.noServersCounter.WithLabelValues(m.name).Inc()
	}
}

// Describe implements prometheus.Collector.
func (m *PipelineMonitor) Describe(ch chan<- *prometheus.Desc) {
	m.stageRunTimer.Describe(ch)
	m.stageRemovedServers.Describe(ch)
	m.pipelineRunTimer.Describe(ch)
	m.serversInObserver.Describe(ch)
	m.serversOutObserver.Describe(ch)
	m.requestCounter.Describe(ch)
	m.noServersCounter.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PipelineMonitor) Collect(ch chan<- prometheus.Metric) {
	m.stageRunTimer.Collect(ch)
	m.stageRemovedServers.Collect(ch)
	m.pipelineRunTimer.Collect(ch)
	m.serversInObserver.Collect(ch)
	m.serversOutObserver.Collect(ch)
	m.requestCounter.Collect(ch)
	m.noServersCounter.Collect(ch)
}
