//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgduncan/go-fetch-cache/caches"
)

func setup(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("FETCHCACHE_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgresql://localhost:5455/postgresDB?user=postgresUser&password=postgresPW&sslmode=disable"
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.Exec("DROP TABLE IF EXISTS fetch_cache")
		db.Close()
	})

	return db
}

func TestCacheIntegration(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	c, err := New(ctx, db, &Config{})
	require.NoError(t, err)

	found, err := c.Exists(ctx, "42.png")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = c.Read(ctx, "42.png")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem)

	require.NoError(t, c.WriteAtomic(ctx, "42.png", []byte("first")))
	require.NoError(t, c.WriteAtomic(ctx, "42.png", []byte("second")))

	got, err := c.Read(ctx, "42.png")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	require.NoError(t, c.Remove(ctx, "42.png"))
	found, err = c.Exists(ctx, "42.png")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheIntegrationCorruptRow(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	c, err := New(ctx, db, &Config{})
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, queryUpsertItem, "bad.png", []byte("garbage"), time.Now(), nil)
	require.NoError(t, err)

	_, err = c.Read(ctx, "bad.png")
	assert.ErrorIs(t, err, caches.ErrCorruptItem)
}

func TestCacheIntegrationExpiry(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	c, err := New(ctx, db, &Config{ItemExpiration: time.Minute})
	require.NoError(t, err)

	base := time.Now()
	c.now = func() time.Time { return base }
	require.NoError(t, c.WriteAtomic(ctx, "a.png", []byte("a")))

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	found, err := c.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.False(t, found, "expired item should be reported absent")

	n, err := deleteExpiredItems(ctx, db, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
