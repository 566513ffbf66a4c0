package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	gofetchcache "github.com/dgduncan/go-fetch-cache"
)

const headerStorageKey = "X-Storage-Key"

type handlers struct {
	cache  *gofetchcache.FetchCache
	logger *slog.Logger
}

func newRouter(fc *gofetchcache.FetchCache, logger *slog.Logger) *mux.Router {
	h := &handlers{cache: fc, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/resource", h.resource).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	return r
}

func (h *handlers) resource(w http.ResponseWriter, r *http.Request) {
	locator := r.URL.Query().Get("locator")
	if locator == "" {
		http.Error(w, "missing locator", http.StatusBadRequest)
		return
	}

	data, err := h.cache.Get(r.Context(), locator)
	if err != nil {
		status := statusFor(err)
		h.logger.Warn("resource failed", "locator", locator, "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	if key, err := h.cache.Key(locator); err == nil {
		w.Header().Set(headerStorageKey, key)
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.cache.Stats()); err != nil {
		h.logger.Error("encode stats", "error", err)
	}
}

// statusFor maps a Get failure onto the response status for the caller.
func statusFor(err error) int {
	var serverErr *gofetchcache.ServerError
	switch {
	case errors.Is(err, gofetchcache.ErrInvalidLocator):
		return http.StatusBadRequest
	case errors.Is(err, gofetchcache.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &serverErr):
		if serverErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, gofetchcache.ErrNetworkUnreachable),
		errors.Is(err, gofetchcache.ErrBodyTooLarge):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// serve runs the HTTP server until ctx is done and then shuts it down.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
