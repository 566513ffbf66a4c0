package local

import (
	"context"
	"sync"

	"github.com/dgduncan/go-fetch-cache/caches"
)

// BasicCache is an in-memory gofetchcache.Storage. Entries do not survive the
// process; it suits tests and short-lived tools.
type BasicCache struct {
	cache map[string][]byte

	lock sync.RWMutex
}

func (bc *BasicCache) Exists(_ context.Context, key string) (bool, error) {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	_, found := bc.cache[key]
	return found, nil
}

func (bc *BasicCache) Read(_ context.Context, key string) ([]byte, error) {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	val, found := bc.cache[key]
	if !found {
		return nil, caches.ErrNoCacheItem
	}

	return append([]byte(nil), val...), nil
}

// WriteAtomic stores a private copy of data; readers see either the old or the
// new value.
func (bc *BasicCache) WriteAtomic(_ context.Context, key string, data []byte) error {
	if key == "" {
		return caches.ErrInvalidKey
	}
	cp := append([]byte{}, data...)

	bc.lock.Lock()
	defer bc.lock.Unlock()

	bc.cache[key] = cp

	return nil
}

func (bc *BasicCache) Remove(_ context.Context, key string) error {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	delete(bc.cache, key)

	return nil
}

// Len returns the number of stored entries.
func (bc *BasicCache) Len() int {
	bc.lock.RLock()
	defer bc.lock.RUnlock()

	return len(bc.cache)
}

func NewBasicCache() *BasicCache {
	return &BasicCache{
		cache: make(map[string][]byte),
	}
}
