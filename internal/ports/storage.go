package ports

import "context"

// Storage is a persistent string key/value store. Get returns
// domain.ErrKeyNotFound for missing keys; Remove of a missing key succeeds.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}
