package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configs that check their own invariants.
type Validator interface {
	Validate() error
}

var dotenvOnce sync.Once

// Load populates v from the environment.
func Load[T any](v *T) error {
	return load(v, env.Options{})
}

// LoadPrefixed populates v from variables named prefix + tag.
func LoadPrefixed[T any](prefix string, v *T) error {
	return load(v, env.Options{Prefix: prefix})
}

// MustLoad works like Load but panics on failure. Intended for main.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func load[T any](v *T, opts env.Options) error {
	dotenvOnce.Do(func() {
		// A missing .env is expected outside local development.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	if err := env.ParseWithOptions(v, opts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if val, ok := any(v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}
