package leveldb

import (
	"context"
	"errors"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/dgduncan/go-fetch-cache/caches"
)

const entryPrefix = "e:"

// Config defines the configuration options for the LevelDB cache implementation.
type Config struct {
	Path string // directory of the LevelDB database, created if missing

	// Sync makes every write wait for the write-ahead log to reach disk.
	Sync bool
}

// Cache implements gofetchcache.Storage on an embedded LevelDB database.
// Each entry is a single Put of a checksummed record, so it is either fully
// present or absent.
type Cache struct {
	db *leveldb.DB

	writeOpts *opt.WriteOptions
	now       func() time.Time
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	return c.db.Has(entryKey(key), nil)
}

func (c *Cache) Read(_ context.Context, key string) ([]byte, error) {
	b, err := c.db.Get(entryKey(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, caches.ErrNoCacheItem
		}
		return nil, err
	}

	return caches.DecodeRecord(b)
}

func (c *Cache) WriteAtomic(_ context.Context, key string, data []byte) error {
	if key == "" {
		return caches.ErrInvalidKey
	}

	b, err := caches.EncodeRecord(data, c.now())
	if err != nil {
		return err
	}

	return c.db.Put(entryKey(key), b, c.writeOpts)
}

func (c *Cache) Remove(_ context.Context, key string) error {
	return c.db.Delete(entryKey(key), c.writeOpts)
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func entryKey(key string) []byte {
	return []byte(entryPrefix + key)
}

// New opens (or creates) the LevelDB database at config.Path.
func New(config *Config) (*Cache, error) {
	if config == nil || config.Path == "" {
		return nil, caches.ValidationError{Reason: "leveldb path required"}
	}

	db, err := leveldb.OpenFile(config.Path, nil)
	if err != nil {
		return nil, err
	}

	return NewWithDB(db, config.Sync)
}

// NewWithDB wraps an already opened database. Close closes db.
func NewWithDB(db *leveldb.DB, sync bool) (*Cache, error) {
	if db == nil {
		return nil, caches.ValidationError{Reason: "nil db"}
	}

	return &Cache{
		db:        db,
		writeOpts: &opt.WriteOptions{Sync: sync},
		now:       time.Now,
	}, nil
}
