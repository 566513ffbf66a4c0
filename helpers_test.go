package gofetchcache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgduncan/go-fetch-cache/caches"
	"github.com/dgduncan/go-fetch-cache/caches/local"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingTransport returns body for every locator, optionally blocking until
// release is closed, and counts calls.
type countingTransport struct {
	body    []byte
	err     error
	release chan struct{}
	started chan struct{}

	once  sync.Once
	calls atomic.Int64
}

func newCountingTransport(body []byte, err error) *countingTransport {
	return &countingTransport{body: body, err: err, started: make(chan struct{})}
}

func (c *countingTransport) Fetch(ctx context.Context, _ string) ([]byte, error) {
	c.calls.Add(1)
	c.once.Do(func() { close(c.started) })
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte(nil), c.body...), nil
}

// spyStorage wraps a BasicCache, counts calls and can mark keys corrupt or
// fail writes.
type spyStorage struct {
	*local.BasicCache

	mu        sync.Mutex
	corrupt   map[string]bool
	removed   []string
	failWrite error

	calls atomic.Int64
}

func newSpyStorage() *spyStorage {
	return &spyStorage{BasicCache: local.NewBasicCache(), corrupt: map[string]bool{}}
}

func (s *spyStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.calls.Add(1)
	return s.BasicCache.Exists(ctx, key)
}

func (s *spyStorage) Read(ctx context.Context, key string) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	bad := s.corrupt[key]
	s.mu.Unlock()
	if bad {
		return nil, caches.ErrCorruptItem
	}
	return s.BasicCache.Read(ctx, key)
}

func (s *spyStorage) WriteAtomic(ctx context.Context, key string, data []byte) error {
	s.calls.Add(1)
	if s.failWrite != nil {
		return s.failWrite
	}
	s.mu.Lock()
	delete(s.corrupt, key)
	s.mu.Unlock()
	return s.BasicCache.WriteAtomic(ctx, key, data)
}

func (s *spyStorage) Remove(ctx context.Context, key string) error {
	s.calls.Add(1)
	s.mu.Lock()
	s.removed = append(s.removed, key)
	delete(s.corrupt, key)
	s.mu.Unlock()
	return s.BasicCache.Remove(ctx, key)
}

func (s *spyStorage) markCorrupt(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[key] = true
}

var errWriteFailed = errors.New("disk full")
