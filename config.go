package gofetchcache

import (
	"net/url"
	"strings"
	"time"
)

// DefaultFetchTimeout bounds a single network fetch when no override applies.
const DefaultFetchTimeout = 30 * time.Second

type Config struct {
	// KeyFunc maps a locator to its storage key. Defaults to LastSegmentKey.
	KeyFunc KeyFunc

	// FetchTimeout bounds a single network fetch. The fetch runs detached from
	// the callers' contexts, so this is what stops an abandoned fetch.
	FetchTimeout time.Duration

	// DomainOverrides allow for users to override the fetch timeout for slow or
	// misbehaving domains. The first override whose URI prefixes host+path wins.
	DomainOverrides []DomainOverride
}

type DomainOverride struct {
	URI string // eg. images.slow-cdn.com/thumbs

	Duration time.Duration // eg. 2m
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyFunc:         LastSegmentKey,
		FetchTimeout:    DefaultFetchTimeout,
		DomainOverrides: nil,
	}
}

func (c Config) withDefaults() Config {
	if c.KeyFunc == nil {
		c.KeyFunc = LastSegmentKey
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}

func (c Config) fetchTimeout(u *url.URL) time.Duration {
	for _, v := range c.DomainOverrides {
		if strings.HasPrefix(u.Host+u.Path, v.URI) && v.Duration > 0 {
			return v.Duration
		}
	}
	return c.FetchTimeout
}
