package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"io"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/dgduncan/go-fetch-cache/caches"
)

var (
	// ErrPingFailed is returned if the initial ping to the database returns an error
	ErrPingFailed = errors.New("ping returned error")
)

var (
	//go:embed create_table.sql
	queryCreateTable string
	//go:embed delete_expired.sql
	queryDeleteExpired string
	//go:embed exists_by_key.sql
	queryExistsByKey string
	//go:embed fetch_by_key.sql
	queryFetchByKey string
	//go:embed upsert_item.sql
	queryUpsertItem string
	//go:embed delete_item.sql
	queryDeleteItem string
)

// Config defines the configuration options for the PostgreSQL cache implementation.
type Config struct {
	// DeleteExpiredItems enables automatic cleanup of expired cache entries
	// through a background task that runs until the context given to New is done.
	DeleteExpiredItems bool

	// ExpiredTaskTimer defines the interval at which the cleanup task runs.
	// Shorter durations may impact database performance.
	ExpiredTaskTimer time.Duration

	// ItemExpiration defines how long items remain valid in the database.
	// Zero keeps items until they are removed.
	ItemExpiration time.Duration

	Logger *slog.Logger
}

// Cache implements gofetchcache.Storage using PostgreSQL as the storage backend.
// Each write is a single upsert statement, so a row is observed either with
// the old body or the new one.
type Cache struct {
	db *sql.DB

	expiration time.Duration
	now        func() time.Time
}

func (p *Cache) Exists(ctx context.Context, k string) (bool, error) {
	var found bool
	if err := p.db.QueryRowContext(ctx, queryExistsByKey, k, p.now().UTC()).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// Read retrieves the body stored under k.
// Returns caches.ErrNoCacheItem if the item doesn't exist or has expired.
func (p *Cache) Read(ctx context.Context, k string) ([]byte, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, queryFetchByKey, k, p.now().UTC()).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caches.ErrNoCacheItem
		}
		return nil, err
	}

	return caches.DecodeRecord(body)
}

// WriteAtomic stores data under k, replacing any previous row.
func (p *Cache) WriteAtomic(ctx context.Context, k string, data []byte) error {
	if k == "" {
		return caches.ErrInvalidKey
	}

	createdAt := p.now().UTC()
	body, err := caches.EncodeRecord(data, createdAt)
	if err != nil {
		return err
	}

	var expiredAt sql.NullTime
	if p.expiration > 0 {
		expiredAt = sql.NullTime{Time: createdAt.Add(p.expiration), Valid: true}
	}

	_, err = p.db.ExecContext(ctx, queryUpsertItem, k, body, createdAt, expiredAt)
	return err
}

func (p *Cache) Remove(ctx context.Context, k string) error {
	_, err := p.db.ExecContext(ctx, queryDeleteItem, k)
	return err
}

func createTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, queryCreateTable)
	return err
}

func deleteExpiredItems(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, queryDeleteExpired, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expiredTask(ctx context.Context, db *sql.DB, every time.Duration, now func() time.Time, logger *slog.Logger) {
	t := time.NewTimer(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "expired item task stopped")
			return
		case <-t.C:
			n, err := deleteExpiredItems(ctx, db, now().UTC())
			if err != nil {
				logger.WarnContext(ctx, "error deleting expired items", "error", err)
			} else if n > 0 {
				logger.DebugContext(ctx, "deleted expired items", "count", n)
			}
			_ = t.Reset(every)
		}
	}
}

// New creates a new PostgreSQL cache instance with the provided configuration.
// It verifies the database connection, creates the necessary table structure, and
// optionally starts the cleanup task for expired items.
//
// Returns an error if:
// - The database handle is nil
// - The database connection test fails
// - Table creation fails
func New(ctx context.Context, db *sql.DB, config *Config) (*Cache, error) {
	if db == nil {
		return nil, caches.ValidationError{
			Reason: "nil db",
		}
	}
	if config == nil {
		config = &Config{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrPingFailed, err)
	}

	if err := createTable(ctx, db); err != nil {
		return nil, err
	}

	c := &Cache{
		db: db,

		expiration: config.ItemExpiration,
		now:        time.Now,
	}

	if config.DeleteExpiredItems {
		every := config.ExpiredTaskTimer
		if every <= 0 {
			every = caches.DefaultExpiredTaskTimer
		}
		go expiredTask(ctx, db, every, c.now, logger)
	}

	return c, nil
}
