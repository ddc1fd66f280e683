// Package metrics records build observability data.
//
// Components take a Recorder; NoopRecorder is the default so callers never
// need nil checks. PrometheusRecorder registers the mobsite metrics on a
// registry that the daemon serves over HTTP and the build command can dump to
// a node_exporter textfile.
package metrics
