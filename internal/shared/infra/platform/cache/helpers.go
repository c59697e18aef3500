package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const asyncTimeout = 200 * time.Millisecond

// AsyncSet actualiza la caché en background. La petición original puede haber
// terminado ya, por eso no se hereda su cancelación.
func AsyncSet(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration, log *zap.Logger) {
	if c == nil {
		return
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncTimeout)
		defer cancel()

		if err := c.Set(cacheCtx, key, value, ttl); err != nil {
			log.Warn("⚠️ Cache update failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

// AsyncDelete elimina de la caché en background.
func AsyncDelete(ctx context.Context, c Cache, key string, log *zap.Logger) {
	if c == nil {
		return
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncTimeout)
		defer cancel()

		if err := c.Delete(cacheCtx, key); err != nil {
			log.Warn("⚠️ Cache deletion failed", zap.String("key", key), zap.Error(err))
		}
	}()
}
