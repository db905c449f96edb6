// Package telemetry exports observer activity: Prometheus counters fed by
// the observer while it runs, and OpenTelemetry spans built from a finished
// trace.
package telemetry
