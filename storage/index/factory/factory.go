package factory

import (
	"fmt"
	"sync"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/storage/index"
)

// Factory builds a metadata index for the provided index config.
type Factory func(*config.Index) (index.Index, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds or replaces an index factory for the given strategy name.
func Register(strategy string, factory Factory) {
	mu.Lock()
	registry[strategy] = factory
	mu.Unlock()
}

// Get retrieves a factory for the given strategy.
func Get(strategy string) (Factory, bool) {
	mu.RLock()
	f, ok := registry[strategy]
	mu.RUnlock()
	return f, ok
}

// Create builds an index using the registered factory for the configured strategy.
func Create(cfg *config.Index) (index.Index, error) {
	f, ok := Get(cfg.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown index strategy %q", cfg.Strategy)
	}
	return f(cfg)
}

func init() {
	Register("memory", func(cfg *config.Index) (index.Index, error) {
		return index.NewMemoryIndex(), nil
	})

	Register("mongo", func(cfg *config.Index) (index.Index, error) {
		return index.NewMongoIndex(cfg.Mongo)
	})

	Register("sql", func(cfg *config.Index) (index.Index, error) {
		return index.NewSQLIndex(cfg.SQL)
	})

	Register("d1", func(cfg *config.Index) (index.Index, error) {
		return index.NewD1Index(cfg.D1)
	})
}
