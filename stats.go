package gofetchcache

import "sync/atomic"

// Stats is a snapshot of FetchCache activity since it was created.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Fetches int64 `json:"fetches"`

	// SharedWaits counts callers that joined a fetch another caller started.
	SharedWaits int64 `json:"shared_waits"`

	// Evictions counts unreadable entries removed before refetching.
	Evictions int64 `json:"evictions"`
	Failures  int64 `json:"failures"`
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	fetches   atomic.Int64
	shared    atomic.Int64
	evictions atomic.Int64
	failures  atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Fetches:     c.fetches.Load(),
		SharedWaits: c.shared.Load(),
		Evictions:   c.evictions.Load(),
		Failures:    c.failures.Load(),
	}
}
