package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache stores one parsed copy per configuration type, keyed by type name.
// The per-type sync.Once guarantees env.Parse runs at most once even under
// concurrent Load calls.
type cache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	global = &cache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	dotenvOnce sync.Once
)

// Load parses environment variables into v. The first call for a given type
// does the actual parsing; later calls return the cached copy. A .env file in
// the working directory is loaded once per process if present.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// Missing .env is fine; production reads the real environment.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	global.mu.RLock()
	if cached, ok := global.values[key]; ok {
		*v = cached.(T)
		global.mu.RUnlock()
		return nil
	}
	global.mu.RUnlock()

	global.mu.Lock()
	once, ok := global.onces[key]
	if !ok {
		once = new(sync.Once)
		global.onces[key] = once
	}
	global.mu.Unlock()

	var parseErr error
	once.Do(func() {
		if err := env.Parse(v); err != nil {
			parseErr = errors.Join(ErrParsingConfig, err)
			return
		}

		global.mu.Lock()
		// Stored by value so callers cannot mutate the cached copy.
		global.values[key] = *v
		global.mu.Unlock()
	})
	if parseErr != nil {
		return parseErr
	}

	global.mu.RLock()
	defer global.mu.RUnlock()
	if cached, ok := global.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	// The once ran in another goroutine and failed there.
	return ErrConfigNotLoaded
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
