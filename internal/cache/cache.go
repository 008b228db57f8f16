package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Service defines the interface for a cache system. Values are stored as JSON.
type Service interface {
	// Get unmarshals the cached value into dest.
	Get(ctx context.Context, key string, dest any) error

	// Set stores value for ttl; ttl <= 0 removes the key.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}
