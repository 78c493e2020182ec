package factory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/storage/media"
	"github.com/indieinfra/pantry/storage/media/awss3"
	"github.com/indieinfra/pantry/storage/media/s3"
)

// Factory builds the remote media store for the provided media config.
type Factory func(cfg *config.Media, logger *zap.Logger) (media.Store, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds or replaces a media store factory for the given strategy name.
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

// Create builds the remote media store using the factory registered for the
// configured remote strategy.
func Create(cfg *config.Media, logger *zap.Logger) (media.Store, error) {
	if f, ok := Get(cfg.Remote.Strategy); ok {
		return f(cfg, logger)
	}

	return nil, fmt.Errorf("unknown remote media strategy %q", cfg.Remote.Strategy)
}

func init() {
	Register("noop", func(cfg *config.Media, logger *zap.Logger) (media.Store, error) {
		return &media.NoopStore{Logger: logger}, nil
	})
	Register("s3", func(cfg *config.Media, logger *zap.Logger) (media.Store, error) {
		return s3.NewS3MediaStore(cfg.Remote.S3, cfg.VideoPlaceholder, cfg.Remote.Timeout)
	})
	Register("aws", func(cfg *config.Media, logger *zap.Logger) (media.Store, error) {
		return awss3.NewAWSMediaStore(context.Background(), cfg.Remote.AWS, cfg.VideoPlaceholder, cfg.Remote.Timeout)
	})
}
