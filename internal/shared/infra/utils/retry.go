package utils

import (
	"context"
	"time"
)

// RetryBackoff ejecuta fn hasta attempts veces, duplicando la espera en cada intento. Si retryable no es nil y devuelve
// false, el error se devuelve sin más intentos.
func RetryBackoff(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
			delay = Ternary(base > 0, delay*2, delay)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
