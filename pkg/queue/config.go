package queue

import "time"

// Config holds queue settings.
type Config struct {
	HotHorizon time.Duration `env:"QUEUE_HOT_HORIZON" envDefault:"1h"`
	// HotCapacity bounds the in-memory tier. A negative value disables it.
	HotCapacity     int           `env:"QUEUE_HOT_CAPACITY" envDefault:"10000"`
	BatchSize       int           `env:"QUEUE_BATCH_SIZE" envDefault:"100"`
	MaxConcurrent   int           `env:"QUEUE_MAX_CONCURRENT" envDefault:"8"`
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"15s"`
	AttemptTimeout  time.Duration `env:"QUEUE_ATTEMPT_TIMEOUT" envDefault:"30s"`
	OfflineRecheck  time.Duration `env:"QUEUE_OFFLINE_RECHECK" envDefault:"5m"`
	MaxAttempts     int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"6"`
	CleanupInterval time.Duration `env:"QUEUE_CLEANUP_INTERVAL" envDefault:"1h"`
	Retention       time.Duration `env:"QUEUE_RETENTION" envDefault:"168h"`
	History         int           `env:"QUEUE_HISTORY" envDefault:"1000"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the settings used when no Config is supplied.
func DefaultConfig() Config {
	return Config{
		HotHorizon:      time.Hour,
		HotCapacity:     10000,
		BatchSize:       100,
		MaxConcurrent:   8,
		PollInterval:    15 * time.Second,
		AttemptTimeout:  30 * time.Second,
		OfflineRecheck:  5 * time.Minute,
		MaxAttempts:     6,
		CleanupInterval: time.Hour,
		Retention:       7 * 24 * time.Hour,
		History:         1000,
		ShutdownTimeout: 30 * time.Second,
	}
}

// merge fills zero fields of c from d.
func (c Config) merge(d Config) Config {
	if c.HotHorizon <= 0 {
		c.HotHorizon = d.HotHorizon
	}
	if c.HotCapacity == 0 {
		c.HotCapacity = d.HotCapacity
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.OfflineRecheck <= 0 {
		c.OfflineRecheck = d.OfflineRecheck
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.History <= 0 {
		c.History = d.History
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
