package services

import (
	"context"
	"time"
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Cache holds concluded adventures between restarts of the in-memory
// story state. Values are opaque bytes; keys share a prefix per record type.
type Cache interface {
	HealthChecker

	// Put stores value under key. A zero ttl keeps the entry until evicted.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Fetch returns the value under key. found is false for a missing or
	// expired key, which is not an error.
	Fetch(ctx context.Context, key string) (value []byte, found bool, err error)

	// Keys lists live keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
