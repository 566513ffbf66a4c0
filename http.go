package gofetchcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// HTTPTransport is a Transport that retrieves locators with HTTP GET.
type HTTPTransport struct {
	Client *http.Client

	// MaxBodyBytes rejects responses larger than this many bytes. Zero means
	// no limit.
	MaxBodyBytes int64

	// UserAgent is sent with every request when set.
	UserAgent string
}

// NewHTTPTransport returns an HTTPTransport using client, or
// http.DefaultClient when client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Client: client}
}

// Fetch performs a GET for locator. Failures are reported as ErrTimeout,
// ErrNetworkUnreachable, *ServerError or ErrBodyTooLarge.
func (t *HTTPTransport) Fetch(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, invalidLocator(locator, err)
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &ServerError{StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if t.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, t.MaxBodyBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	if t.MaxBodyBytes > 0 && int64(len(data)) > t.MaxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, t.MaxBodyBytes)
	}

	return data, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrNetworkUnreachable, err)
}
