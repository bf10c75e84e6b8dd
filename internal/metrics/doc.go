// Package metrics records pipeline run and step metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics are
// optional everywhere:
//
//	rec := metrics.Recorder(metrics.NoopRecorder{})
//	if cfg.Metrics.Textfile != "" {
//	    rec = metrics.NewPrometheusRecorder(reg)
//	}
//
// A CI job is a short-lived process with nothing to scrape it, so the
// Prometheus registry is flushed to a node-exporter textfile at the end of the
// run with WriteTextfile instead of being served over HTTP.
package metrics
