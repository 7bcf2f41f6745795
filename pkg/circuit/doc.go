// Package circuit implements the per-provider circuit breaker.
//
// A breaker starts Closed. After Threshold consecutive failures it opens and
// rejects attempts. Once Cooldown has elapsed since the last failure the next
// Allow call moves it to HalfOpen and lets a probe through. A success in
// HalfOpen closes the breaker; a failure reopens it and restarts the cooldown.
//
//	b := circuit.New(circuit.WithThreshold(5), circuit.WithCooldown(5*time.Minute))
//	if !b.Allow() {
//	    return errSkipped
//	}
//	if err := send(); err != nil {
//	    b.RecordFailure()
//	    return err
//	}
//	b.RecordSuccess()
package circuit
