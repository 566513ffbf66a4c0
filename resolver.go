package gofetchcache

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/dgduncan/go-fetch-cache/caches"
)

// Resolution is the outcome of looking a locator up in durable storage.
type Resolution struct {
	Key  string
	Hit  bool
	Data []byte
}

// Resolver maps locators to storage keys and serves entries already present
// in storage. It never writes.
type Resolver struct {
	storage Storage
	keyFunc KeyFunc
	logger  *slog.Logger
}

// NewResolver creates a Resolver over storage. A nil keyFunc selects
// LastSegmentKey and a nil logger discards output.
func NewResolver(storage Storage, keyFunc KeyFunc, logger *slog.Logger) *Resolver {
	if keyFunc == nil {
		keyFunc = LastSegmentKey
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{storage: storage, keyFunc: keyFunc, logger: logger}
}

// Key returns the storage key for locator, or ErrInvalidLocator.
func (r *Resolver) Key(locator string) (string, error) {
	u, err := parseLocator(locator)
	if err != nil {
		return "", err
	}
	key, err := r.keyFunc(u)
	if err != nil {
		return "", invalidLocator(locator, err)
	}
	if key == "" {
		return "", invalidLocator(locator, errNoSegment)
	}
	return key, nil
}

// Resolve checks storage for locator.
//
// A present entry is returned as a hit. An absent entry is a miss with no side
// effects. An entry that exists but cannot be read is reported as *DecodeError
// so the caller can decide whether to evict it.
func (r *Resolver) Resolve(ctx context.Context, locator string) (Resolution, error) {
	key, err := r.Key(locator)
	if err != nil {
		return Resolution{}, err
	}

	found, err := r.storage.Exists(ctx, key)
	if errors.Is(err, caches.ErrInvalidKey) {
		return Resolution{}, invalidLocator(locator, err)
	}
	if err != nil {
		return Resolution{Key: key}, &IOError{Op: "exists", Key: key, Err: err}
	}
	if !found {
		r.logger.DebugContext(ctx, "cache item not found", "url", locator, "key", key)
		return Resolution{Key: key}, nil
	}

	data, err := r.storage.Read(ctx, key)
	if err != nil {
		if errors.Is(err, caches.ErrNoCacheItem) {
			// removed between Exists and Read
			return Resolution{Key: key}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{Key: key}, &IOError{Op: "read", Key: key, Err: errors.Join(ctxErr, err)}
		}
		return Resolution{Key: key}, &DecodeError{Key: key, Err: err}
	}

	r.logger.DebugContext(ctx, "cache item found", "url", locator, "key", key)
	return Resolution{Key: key, Hit: true, Data: data}, nil
}
