package gofetchcache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgduncan/go-fetch-cache/caches"
)

// FetchCache returns the bytes behind a locator, fetching each locator over
// the network at most once and keeping the result in durable storage for
// later calls and later processes.
type FetchCache struct {
	resolver    *Resolver
	coordinator *Coordinator

	stats  *counters
	logger *slog.Logger
}

// New creates a FetchCache that reads and writes entries in storage and
// fetches misses with transport.
//
// If opts is nil, DefaultConfig is used. If the logger is nil, a no-op logger
// writing to io.Discard will be used.
func New(storage Storage, transport Transport, opts *Config, logger *slog.Logger) (*FetchCache, error) {
	if storage == nil {
		return nil, caches.ValidationError{Reason: "nil storage"}
	}
	if transport == nil {
		return nil, caches.ValidationError{Reason: "nil transport"}
	}

	coordinator := NewCoordinator(storage, transport, opts, logger)

	return &FetchCache{
		resolver:    coordinator.resolver,
		coordinator: coordinator,
		stats:       coordinator.stats,
		logger:      coordinator.logger,
	}, nil
}

// Get returns the bytes for locator.
//
// A stored entry is returned without touching the network. A missing entry is
// fetched, stored and returned; concurrent calls for the same locator share one
// fetch. A stored entry that cannot be read is evicted and fetched again, so
// Get never reports a *DecodeError.
func (f *FetchCache) Get(ctx context.Context, locator string) ([]byte, error) {
	res, err := f.resolver.Resolve(ctx, locator)

	var decodeErr *DecodeError
	switch {
	case err == nil && res.Hit:
		f.stats.hits.Add(1)
		return res.Data, nil
	case errors.As(err, &decodeErr):
		// evicted inside the fetch, where concurrent callers cannot race the removal
		f.logger.DebugContext(ctx, "unreadable cache item", "url", locator, "key", decodeErr.Key, "error", decodeErr.Err)
	case err != nil:
		return nil, err
	}

	f.stats.misses.Add(1)
	return f.coordinator.FetchAndStore(ctx, locator)
}

// Resolve looks locator up in storage without fetching.
func (f *FetchCache) Resolve(ctx context.Context, locator string) (Resolution, error) {
	return f.resolver.Resolve(ctx, locator)
}

// Key returns the storage key locator is cached under.
func (f *FetchCache) Key(locator string) (string, error) {
	return f.resolver.Key(locator)
}

// Stats returns a snapshot of the cache counters.
func (f *FetchCache) Stats() Stats {
	return f.stats.snapshot()
}
