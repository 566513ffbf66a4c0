package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/lib/pq"

	gofetchcache "github.com/dgduncan/go-fetch-cache"
	"github.com/dgduncan/go-fetch-cache/caches/disk"
	"github.com/dgduncan/go-fetch-cache/caches/dynamodb"
	"github.com/dgduncan/go-fetch-cache/caches/leveldb"
	"github.com/dgduncan/go-fetch-cache/caches/local"
	"github.com/dgduncan/go-fetch-cache/caches/postgres"
)

// openStorage builds the backend named by cfg.Backend. The returned close
// function releases whatever the backend holds open and is never nil.
func openStorage(ctx context.Context, cfg storageConfig, logger *slog.Logger) (gofetchcache.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "disk":
		c, err := disk.New(&disk.Config{Dir: cfg.Dir})
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil

	case "memory":
		return local.NewBasicCache(), noop, nil

	case "leveldb":
		c, err := leveldb.New(&leveldb.Config{Path: cfg.LevelDBPath, Sync: !cfg.NoSync})
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		c, err := postgres.New(ctx, db, &postgres.Config{
			DeleteExpiredItems: cfg.DeleteExpired,
			ItemExpiration:     cfg.ItemExpiration,
			Logger:             logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return c, db.Close, nil

	case "dynamodb":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.DynamoRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.DynamoRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}

		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})

		if cfg.CreateTable {
			logger.Info("creating dynamodb table", "table", cfg.DynamoTable)
			if err := dynamodb.CreateTable(ctx, client, cfg.DynamoTable); err != nil {
				return nil, noop, err
			}
		}

		c, err := dynamodb.New(ctx, client, &dynamodb.Config{
			DeleteExpiredItems: cfg.DeleteExpired,
			ItemExpiration:     cfg.ItemExpiration,
			Table:              cfg.DynamoTable,
		})
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	}

	return nil, noop, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}
