package metrics

import (
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "graspci"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stepDuration   *prom.HistogramVec
	stepResults    *prom.CounterVec
	runDuration    *prom.HistogramVec
	runOutcomes    *prom.CounterVec
	runLastSuccess *prom.GaugeVec
	retries        prom.Counter
	lintIssues     prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pipeline", "step"}),
		stepResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"pipeline", "step", "result"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"pipeline"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by final status",
		}, []string{"pipeline", "result"}),
		runLastSuccess: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "run_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per pipeline",
		}, []string{"pipeline"}),
		retries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Dataset download retries after transient failures",
		}),
		lintIssues: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "lint_issues",
			Help:      "Spelling issues found by the last lint run",
		}),
	}
	reg.MustRegister(pr.stepDuration, pr.stepResults, pr.runDuration, pr.runOutcomes, pr.runLastSuccess, pr.retries, pr.lintIssues)
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(pipeline, step string, d time.Duration) {
	if p == nil {
		return
	}
	p.stepDuration.WithLabelValues(pipeline, step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(pipeline, step string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stepResults.WithLabelValues(pipeline, step, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(pipeline string, d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(pipeline string, result ResultLabel) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(pipeline, string(result)).Inc()
	if result == ResultSuccess {
		p.runLastSuccess.WithLabelValues(pipeline).SetToCurrentTime()
	}
}

func (p *PrometheusRecorder) IncDownloadRetry() {
	if p == nil {
		return
	}
	p.retries.Inc()
}

func (p *PrometheusRecorder) ObserveLintIssues(n int) {
	if p == nil {
		return
	}
	p.lintIssues.Set(float64(n))
}

// WriteTextfile writes all metrics gathered from reg to path in the node-exporter textfile format.
// The write is atomic, so a collector never reads a partial file.
func WriteTextfile(reg *prom.Registry, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return prom.WriteToTextfile(path, reg)
}
