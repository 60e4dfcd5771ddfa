// Package session keeps per-browser state as opaque blobs keyed by session id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("session value not found")
	ErrConflict = errors.New("session value changed concurrently")
)

// DefaultIdleTimeout matches the storefront's session lifetime: entries expire after
// this long without being read or written.
const DefaultIdleTimeout = 4 * time.Hour

// Store is a key to blob store with a sliding idle timeout.
type Store interface {
	// Load returns the stored blob and refreshes its idle timeout.
	Load(ctx context.Context, sid, key string) ([]byte, error)
	// CompareAndSwap writes next only if the current value equals prev.
	// A nil prev means "no value stored yet".
	CompareAndSwap(ctx context.Context, sid, key string, prev, next []byte) error
	Delete(ctx context.Context, sid, key string) error
}

func storeKey(sid, key string) string {
	return fmt.Sprintf("session:%s:%s", sid, key)
}
