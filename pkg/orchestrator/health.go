package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/enhance"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// HealthState is the coarse state of one component or the whole system.
type HealthState string

const (
	StateHealthy   HealthState = "healthy"
	StateDegraded  HealthState = "degraded"
	StateUnhealthy HealthState = "unhealthy"
)

// ComponentHealth is one line of a health report.
type ComponentHealth struct {
	State   HealthState `json:"state"`
	Message string      `json:"message,omitempty"`
}

// HealthReport is returned by GetHealthReport.
type HealthReport struct {
	State      HealthState                `json:"state"`
	Components map[string]ComponentHealth `json:"components"`
	Providers  []provider.Health          `json:"providers"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Stats is returned by GetStats.
type Stats struct {
	Delivery  metrics.Stats     `json:"delivery"`
	Providers []provider.Health `json:"providers"`
	Queue     queue.Stats       `json:"queue"`
	Enhance   enhance.Stats     `json:"enhance"`
	Uptime    time.Duration     `json:"uptime"`
}

// GetStats returns a snapshot of delivery aggregates and component state.
func (o *Orchestrator) GetStats() Stats {
	return Stats{
		Delivery:  o.metrics.Snapshot(),
		Providers: o.delivery.HealthReport(),
		Queue:     o.queue.Stats(),
		Enhance:   o.enhancer.Stats(),
		Uptime:    o.Uptime(),
	}
}

// IsHealthy reports whether the system can durably record intent and has
// at least one usable real-time provider.
func (o *Orchestrator) IsHealthy(ctx context.Context) bool {
	if err := o.deps.Inbox.Ping(ctx); err != nil {
		return false
	}
	if err := o.queue.Ping(ctx); err != nil {
		return false
	}
	return o.delivery.Healthy()
}

// GetHealthReport checks every component. Storage failures make the system
// unhealthy; losing real-time providers only degrades it since email and the
// queue still accept notifications.
func (o *Orchestrator) GetHealthReport(ctx context.Context) HealthReport {
	report := HealthReport{
		State:      StateHealthy,
		Components: make(map[string]ComponentHealth, 5),
		Providers:  o.delivery.HealthReport(),
		CheckedAt:  o.now(),
	}

	check := func(name string, err error, failed HealthState) {
		if err == nil {
			report.Components[name] = ComponentHealth{State: StateHealthy}
			return
		}
		report.Components[name] = ComponentHealth{State: failed, Message: err.Error()}
		report.State = worse(report.State, failed)
		o.logger.LogAttrs(ctx, slog.LevelError, "component health check failed",
			logger.Component("orchestrator"),
			slog.String("check", name),
			logger.Error(err),
		)
	}

	check("inbox", o.deps.Inbox.Ping(ctx), StateUnhealthy)
	check("queue", o.queue.Ping(ctx), StateUnhealthy)
	if p, ok := o.deps.Users.(pinger); ok {
		check("users", p.Ping(ctx), StateUnhealthy)
	}

	var providersErr error
	if !o.delivery.Healthy() {
		providersErr = errors.New("no real-time provider is available")
	}
	check("providers", providersErr, StateDegraded)

	st := o.enhancer.Stats()
	var auditErr error
	if st.AuditFailures > 0 {
		auditErr = errors.New("audit writes have failed")
	}
	check("audit", auditErr, StateDegraded)

	return report
}

// RefreshSystem re-probes provider availability and runs one queue drain.
func (o *Orchestrator) RefreshSystem(ctx context.Context) (int, error) {
	health := o.delivery.Refresh(ctx)
	n, err := o.queue.ProcessPending(ctx)

	available := 0
	for _, h := range health {
		if h.Available {
			available++
		}
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "system refreshed",
		logger.Component("orchestrator"),
		slog.Int("providers_available", available),
		logger.Count(n),
		logger.Error(err),
	)
	return n, err
}

func worse(a, b HealthState) HealthState {
	rank := map[HealthState]int{StateHealthy: 0, StateDegraded: 1, StateUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
