package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	gofetchcache "github.com/dgduncan/go-fetch-cache"
)

var (
	version = "dev"

	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	opts, err := parseCLI(args)
	if err != nil {
		fmt.Fprintf(stdErr, "fetchcache: %v\n", err)
		return 2
	}
	if opts.showVersion {
		fmt.Fprintf(stdOut, "fetchcache %s\n", version)
		return 0
	}

	logger, err := newLogger(opts.cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "fetchcache: %v\n", err)
		return 2
	}

	storage, closeStorage, err := openStorage(ctx, opts.cfg.Storage, logger)
	if err != nil {
		logger.Error("open storage", "backend", opts.cfg.Storage.Backend, "error", err)
		return 1
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Warn("close storage", "error", err)
		}
	}()

	fc, err := newFetchCache(opts.cfg, storage, logger)
	if err != nil {
		logger.Error("init fetch cache", "error", err)
		return 1
	}

	if opts.cfg.Listen != "" {
		if err := serve(ctx, opts.cfg.Listen, newRouter(fc, logger), logger); err != nil {
			logger.Error("server", "error", err)
			return 1
		}
		return 0
	}

	if err := fetchAll(ctx, fc, opts.locators, opts.cfg.Out, opts.cfg.Fetch.Concurrency); err != nil {
		return 1
	}
	return 0
}

func newFetchCache(cfg appConfig, storage gofetchcache.Storage, logger *slog.Logger) (*gofetchcache.FetchCache, error) {
	fcConfig, err := cfg.fetchCacheConfig()
	if err != nil {
		return nil, err
	}

	transport := gofetchcache.NewHTTPTransport(&http.Client{})
	transport.MaxBodyBytes = cfg.Fetch.MaxBodyBytes
	transport.UserAgent = cfg.Fetch.UserAgent
	if transport.UserAgent == "" {
		transport.UserAgent = "fetchcache/" + version
	}

	return gofetchcache.New(storage, transport, fcConfig, logger)
}

type fetchResult struct {
	locator string
	key     string
	size    int
	err     error
}

// fetchAll gets every locator, at most limit at a time, and reports one line
// per locator in argument order. A failed locator does not stop the others.
func fetchAll(ctx context.Context, fc *gofetchcache.FetchCache, locators []string, outDir string, limit int) error {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	results := make([]fetchResult, len(locators))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, locator := range locators {
		i, locator := i, locator
		g.Go(func() error {
			results[i] = fetchOne(ctx, fc, locator, outDir)
			return results[i].err
		})
	}
	err := g.Wait()

	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(stdErr, "%s: %v\n", r.locator, r.err)
			continue
		}
		fmt.Fprintf(stdOut, "%s\t%s\t%d\n", r.locator, r.key, r.size)
	}

	return err
}

func fetchOne(ctx context.Context, fc *gofetchcache.FetchCache, locator, outDir string) fetchResult {
	res := fetchResult{locator: locator}

	key, err := fc.Key(locator)
	if err != nil {
		res.err = err
		return res
	}
	res.key = key

	data, err := fc.Get(ctx, locator)
	if err != nil {
		res.err = err
		return res
	}
	res.size = len(data)

	if outDir != "" {
		if err := os.WriteFile(filepath.Join(outDir, key), data, 0o644); err != nil {
			res.err = fmt.Errorf("write output: %w", err)
		}
	}

	return res
}
