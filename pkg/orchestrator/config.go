package orchestrator

import "time"

// Config tunes the orchestrator.
type Config struct {
	// RealtimeTimeout bounds one provider manager call.
	RealtimeTimeout time.Duration `env:"ORCHESTRATOR_REALTIME_TIMEOUT" envDefault:"10s"`
	// EmailTimeout bounds one fallback email.
	EmailTimeout time.Duration `env:"ORCHESTRATOR_EMAIL_TIMEOUT" envDefault:"15s"`
	// ReplayLimit caps how many undelivered records one replay attempts.
	ReplayLimit int `env:"ORCHESTRATOR_REPLAY_LIMIT" envDefault:"100"`
	// MulticastConcurrency bounds per-recipient fallbacks of a multicast.
	MulticastConcurrency int `env:"ORCHESTRATOR_MULTICAST_CONCURRENCY" envDefault:"16"`
	// MaxRecipients rejects larger multicasts.
	MaxRecipients int `env:"ORCHESTRATOR_MAX_RECIPIENTS" envDefault:"10000"`
	// RecoveryInterval is how often Run sweeps for stranded records.
	RecoveryInterval time.Duration `env:"ORCHESTRATOR_RECOVERY_INTERVAL" envDefault:"1m"`
	// RecoveryGrace is the minimum age of a record before a sweep may
	// consider it stranded.
	RecoveryGrace time.Duration `env:"ORCHESTRATOR_RECOVERY_GRACE" envDefault:"2m"`
	// RecoveryBatch caps the records one sweep handles.
	RecoveryBatch int `env:"ORCHESTRATOR_RECOVERY_BATCH" envDefault:"500"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		RealtimeTimeout:      10 * time.Second,
		EmailTimeout:         15 * time.Second,
		ReplayLimit:          100,
		MulticastConcurrency: 16,
		MaxRecipients:        10000,
		RecoveryInterval:     time.Minute,
		RecoveryGrace:        2 * time.Minute,
		RecoveryBatch:        500,
	}
}

func (c Config) merge(def Config) Config {
	if c.RealtimeTimeout <= 0 {
		c.RealtimeTimeout = def.RealtimeTimeout
	}
	if c.EmailTimeout <= 0 {
		c.EmailTimeout = def.EmailTimeout
	}
	if c.ReplayLimit <= 0 {
		c.ReplayLimit = def.ReplayLimit
	}
	if c.MulticastConcurrency <= 0 {
		c.MulticastConcurrency = def.MulticastConcurrency
	}
	if c.MaxRecipients <= 0 {
		c.MaxRecipients = def.MaxRecipients
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = def.RecoveryInterval
	}
	if c.RecoveryGrace <= 0 {
		c.RecoveryGrace = def.RecoveryGrace
	}
	if c.RecoveryBatch <= 0 {
		c.RecoveryBatch = def.RecoveryBatch
	}
	return c
}
