// Package sinks provides Sink implementations for the progress Hub: a zap
// log sink, a Prometheus metrics sink, and a durable store sink.
package sinks
