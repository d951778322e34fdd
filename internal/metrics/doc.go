// Package metrics provides build metrics for sitepack.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless a real recorder is wired in:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	builder := build.New(site, build.WithRecorder(rec))
//
// A one-shot CLI build has no scrape endpoint; WriteTextfile dumps the
// registry in the node_exporter textfile format after each build instead.
package metrics
