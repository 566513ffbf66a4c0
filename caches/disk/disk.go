// Package disk stores fetch cache entries as plain files in a single
// directory, one file per storage key, holding exactly the fetched bytes.
// Writes go to a temporary file in the same directory and are renamed into
// place, so a reader sees either no file or the complete one.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgduncan/go-fetch-cache/caches"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644

	tempPrefix = ".fetch-"
)

// Config defines the configuration options for the disk cache.
type Config struct {
	// Dir is the directory entries are stored in. It is created if missing.
	Dir string

	// NoSync skips fsync before the rename. Faster, but a crash can leave an
	// empty or short file under the key. Entries carry no checksum, so Read
	// returns such a file as a complete entry and it is never refetched.
	NoSync bool
}

// Cache implements gofetchcache.Storage on the local filesystem.
type Cache struct {
	dir    string
	noSync bool
}

// New creates a disk cache rooted at config.Dir and removes temporary files
// left behind by an interrupted write.
func New(config *Config) (*Cache, error) {
	if config == nil || config.Dir == "" {
		return nil, caches.ValidationError{Reason: "storage dir required"}
	}

	abs, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	c := &Cache{dir: abs, noSync: config.NoSync}
	if err := c.removeTemps(); err != nil {
		return nil, err
	}

	return c, nil
}

// Dir returns the absolute storage directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	p, err := c.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return info.Mode().IsRegular(), nil
}

func (c *Cache) Read(_ context.Context, key string) ([]byte, error) {
	p, err := c.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, caches.ErrNoCacheItem
		}
		return nil, err
	}

	return data, nil
}

// WriteAtomic writes data to a temporary file next to the destination and
// renames it over the key. On failure the temporary file is removed and any
// previous entry is left as it was.
func (c *Cache) WriteAtomic(ctx context.Context, key string, data []byte) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(c.dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	err = writeAll(ctx, tempFile, data)
	if err == nil && !c.noSync {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempName, filePerm)
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, p); err != nil {
		os.Remove(tempName)
		return err
	}

	return nil
}

func (c *Cache) Remove(_ context.Context, key string) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (c *Cache) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, tempPrefix) {
		return "", fmt.Errorf("%w: %q", caches.ErrInvalidKey, key)
	}
	return filepath.Join(c.dir, key), nil
}

func (c *Cache) removeTemps() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, tempPrefix+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale temp file: %w", err)
		}
	}
	return nil
}

// writeAll writes data in chunks so a cancelled context stops a large write.
func writeAll(ctx context.Context, f *os.File, data []byte) error {
	const chunk = 32 * 1024
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := len(data)
		if n > chunk {
			n = chunk
		}
		if _, err := f.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
