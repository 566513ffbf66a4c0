package gofetchcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Coordinator performs network fetches on cache misses. Concurrent calls for
// the same locator share a single fetch and all observe its outcome.
type Coordinator struct {
	resolver  *Resolver
	storage   Storage
	transport Transport

	group singleflight.Group

	stats  *counters
	logger *slog.Logger
	now    func() time.Time
	c      Config
}

// NewCoordinator creates a Coordinator that fetches with transport and
// persists into storage. A nil opts uses DefaultConfig.
func NewCoordinator(storage Storage, transport Transport, opts *Config, logger *slog.Logger) *Coordinator {
	c := DefaultConfig()
	if opts != nil {
		c = opts.withDefaults()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coordinator{
		resolver:  NewResolver(storage, c.KeyFunc, logger),
		storage:   storage,
		transport: transport,
		stats:     &counters{},
		logger:    logger,
		now:       time.Now,
		c:         c,
	}
}

// FetchAndStore retrieves locator from the network and stores it durably,
// joining an in-flight fetch for the same locator when there is one.
//
// If ctx is done before the fetch completes FetchAndStore returns ctx.Err(),
// but the fetch carries on for the remaining waiters and is still persisted.
func (c *Coordinator) FetchAndStore(ctx context.Context, locator string) ([]byte, error) {
	u, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}
	key, err := c.resolver.Key(locator)
	if err != nil {
		return nil, err
	}

	fetchCtx := context.WithoutCancel(ctx)

	// set only when this caller's function runs, i.e. it leads the flight;
	// read after the result arrives, which happens after the function returned
	var leader bool
	ch := c.group.DoChan(locator, func() (interface{}, error) {
		leader = true
		return c.fetch(fetchCtx, locator, u, key)
	})

	select {
	case res := <-ch:
		if res.Shared && !leader {
			c.stats.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		data := res.Val.([]byte)
		if res.Shared {
			// every waiter gets its own copy
			data = append([]byte(nil), data...)
		}
		return data, nil
	case <-ctx.Done():
		c.logger.DebugContext(ctx, "waiter left in-flight fetch", "url", locator, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func (c *Coordinator) fetch(ctx context.Context, locator string, u *url.URL, key string) ([]byte, error) {
	// a fetch for this locator may have finished between the caller's miss
	// and this flight starting
	res, err := c.resolver.Resolve(ctx, locator)

	var decodeErr *DecodeError
	switch {
	case err == nil && res.Hit:
		c.logger.DebugContext(ctx, "cache item stored by earlier fetch", "url", locator, "key", key)
		return res.Data, nil
	case errors.As(err, &decodeErr):
		c.logger.WarnContext(ctx, "evicting unreadable cache item", "url", locator, "key", key, "error", decodeErr.Err)
		if rmErr := c.storage.Remove(ctx, key); rmErr != nil {
			// the write below replaces the entry anyway
			c.logger.WarnContext(ctx, "error evicting cache item", "key", key, "error", rmErr)
		}
		c.stats.evictions.Add(1)
	case errors.Is(err, ErrInvalidLocator):
		return nil, err
	case err != nil:
		c.logger.DebugContext(ctx, "re-check before fetch failed", "url", locator, "error", err)
	}

	fetchID := uuid.NewString()
	timeout := c.c.fetchTimeout(u)
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.stats.fetches.Add(1)
	started := c.now()
	c.logger.DebugContext(ctx, "fetching resource",
		"url", locator,
		"key", key,
		"fetch_id", fetchID,
		"timeout", timeout.String())

	data, err := c.transport.Fetch(fetchCtx, locator)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		c.stats.failures.Add(1)
		c.logger.DebugContext(ctx, "fetch failed", "url", locator, "fetch_id", fetchID, "error", err)
		return nil, err
	}

	if err := c.storage.WriteAtomic(ctx, key, data); err != nil {
		c.stats.failures.Add(1)
		c.logger.WarnContext(ctx, "error caching fetched resource", "url", locator, "key", key, "error", err)
		return nil, &IOError{Op: "write", Key: key, Err: err}
	}

	c.logger.DebugContext(ctx, "cached fetched resource",
		"url", locator,
		"key", key,
		"fetch_id", fetchID,
		"bytes", len(data),
		"elapsed", c.now().Sub(started).String())

	return data, nil
}
