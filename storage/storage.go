// Package storage provides the key-value storage backends the
// repository persists into. Keys are slash-separated relative paths.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Has(ctx context.Context, key string) (bool, error)
	// List returns all keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
