package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	ErrClosed    = errors.New("cache: closed")
)

// Service is the key/value persistence used for session state. MSet and
// Delete apply to all given keys or to none of them.
type Service interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	MSet(ctx context.Context, values map[string]string, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
