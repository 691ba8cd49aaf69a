// Package telemetry provides structured logging and metrics for rocmdev.
//
// Logging is built on zerolog with console and JSON output. Metrics use a
// private Prometheus registry; because rocmdev is a one-shot CLI, metrics
// are exported to a textfile for the node_exporter textfile collector
// instead of being served over HTTP.
package telemetry
