package gofetchcache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	headerContentLength = "Content-Length"
	headerContentType   = "Content-Type"
	headerRange         = "Range"
	headerAuthorization = "Authorization"
	headerCookie        = "Cookie"

	// HeaderFetchCache reports whether a response came from storage ("hit")
	// or from a fetch ("miss").
	HeaderFetchCache = "X-Fetch-Cache"
)

const (
	stateHit  = "hit"
	stateMiss = "miss"
)

// CacheTransport implements http.RoundTripper and serves GET requests through
// a FetchCache. Requests the cache cannot serve are passed to Wrapped.
type CacheTransport struct {
	Wrapped http.RoundTripper

	cache  *FetchCache
	logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
//
// The process follows these steps:
// 1. Passes non-GET, ranged, credentialed and uncacheable requests to the
//    wrapped transport
// 2. Returns the stored body if the locator is cached
// 3. Otherwise fetches through the cache, joining any in-flight fetch
// 4. Turns a *ServerError into a response with the upstream status.
func (c *CacheTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if !cacheable(r) {
		return c.Wrapped.RoundTrip(r)
	}

	ctx := r.Context()
	locator := r.URL.String()

	res, err := c.cache.Resolve(ctx, locator)
	if errors.Is(err, ErrInvalidLocator) {
		c.logger.DebugContext(ctx, "locator not cacheable, passing through", "url", locator)
		return c.Wrapped.RoundTrip(r)
	}
	if err == nil && res.Hit {
		c.cache.stats.hits.Add(1)
		return newResponse(r, http.StatusOK, res.Data, stateHit), nil
	}

	body, err := c.cache.Get(ctx, locator)
	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return newResponse(r, serverErr.StatusCode, nil, stateMiss), nil
		}
		return nil, err
	}

	return newResponse(r, http.StatusOK, body, stateMiss), nil
}

// cacheable reports whether r can be answered from the shared cache. Entries
// are keyed by locator alone, so requests carrying credentials never are.
func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	for _, h := range []string{headerRange, headerAuthorization, headerCookie} {
		if r.Header.Get(h) != "" {
			return false
		}
	}
	return true
}

func newResponse(r *http.Request, status int, body []byte, state string) *http.Response {
	h := make(http.Header)
	h.Set(headerContentLength, strconv.Itoa(len(body)))
	if len(body) > 0 {
		h.Set(headerContentType, http.DetectContentType(body))
	}
	h.Set(HeaderFetchCache, state)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

// Middleware wraps an http.RoundTripper so GET requests are answered by fc.
//
// The returned function wraps the given http.RoundTripper; a nil RoundTripper
// selects http.DefaultTransport. The Transport fc fetches with must not itself
// route through this middleware.
func Middleware(fc *FetchCache) func(http.RoundTripper) http.RoundTripper {
	return func(rt http.RoundTripper) http.RoundTripper {
		if rt == nil {
			rt = http.DefaultTransport
		}
		return &CacheTransport{Wrapped: rt, cache: fc, logger: fc.logger}
	}
}
