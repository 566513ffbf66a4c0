package gofetchcache

import (
	"context"
)

// Storage is the durable side of the fetch cache. Entries are opaque bytes
// stored under a key produced by a KeyFunc.
//
// WriteAtomic must never let a concurrent Exists or Read observe a partially
// written entry, and a failed WriteAtomic must leave any prior entry intact.
// Read reports a missing key with caches.ErrNoCacheItem.
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	WriteAtomic(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// Transport retrieves the raw bytes for a locator over the network.
type Transport interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// TransportFunc adapts an ordinary function to the Transport interface.
type TransportFunc func(ctx context.Context, locator string) ([]byte, error)

// Fetch calls f(ctx, locator).
func (f TransportFunc) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}
