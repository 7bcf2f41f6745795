// Package config loads component configuration from environment variables.
//
// A .env file in the working directory is read once per process (missing
// files are fine), then struct fields are populated from their env and
// envDefault tags. Configs implementing Validator are validated after parsing.
//
//	type QueueConfig struct {
//	    HotCapacity int           `env:"QUEUE_HOT_CAPACITY" envDefault:"10000"`
//	    Interval    time.Duration `env:"QUEUE_DRAIN_INTERVAL" envDefault:"30s"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// LoadPrefixed reads the same struct under a variable prefix, which the daemon
// uses to configure two instances of one component.
package config
