package media

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/asset"
)

// NoopStore stands in for an unconfigured remote store. It refuses uploads
// so nothing is ever cataloged against it, and accepts deletes.
type NoopStore struct {
	Logger *zap.Logger
}

func (ms *NoopStore) logger() *zap.Logger {
	if ms.Logger == nil {
		return zap.NewNop()
	}
	return ms.Logger
}

func (ms *NoopStore) Store(ctx context.Context, data []byte, originalName string, mimeType string) (*StoredObject, error) {
	ms.logger().Info("rejecting upload to no-op media store",
		zap.String("name", originalName),
		zap.String("mime", mimeType),
		zap.Int("size", len(data)),
	)
	return nil, fmt.Errorf("noop store: %w: remote media is not configured", asset.ErrStoreUnavailable)
}

func (ms *NoopStore) URL(nativeKey string) string {
	return ""
}

func (ms *NoopStore) Delete(ctx context.Context, nativeKey string) error {
	ms.logger().Info("received no-op media delete", zap.String("key", nativeKey))
	return nil
}
