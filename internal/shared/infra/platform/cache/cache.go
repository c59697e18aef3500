package cache

import (
	"context"
	"time"
)

// Cache es una caché clave-valor que serializa en JSON.
type Cache interface {
	// Get rellena dest (un puntero) y devuelve true si hubo hit.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set guarda val. Con ttl <= 0 se usa el TTL por defecto de la implementación.
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}
