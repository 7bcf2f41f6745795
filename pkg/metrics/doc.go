// Package metrics records delivery events and derives aggregate statistics.
//
// An Aggregator is created once and passed to every component that reports
// into it. It keeps a size-bounded rolling log of recent events plus
// cumulative counters broken down by provider, notification type and outcome.
// It is purely observational: nothing reads it to make delivery decisions.
package metrics
