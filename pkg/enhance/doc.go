// Package enhance bundles the optional cross-cutting capabilities of the
// delivery pipeline behind one interface: rate limiting, content screening,
// security auditing and payload optimization.
//
// Each capability is toggled individually. Callers that run without any of
// them use NoOp, which allows every request and passes content through
// unchanged, so the orchestrator never checks for a nil enhancer.
package enhance
