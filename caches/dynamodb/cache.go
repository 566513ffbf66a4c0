package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dgduncan/go-fetch-cache/caches"
)

const (
	attrKey       = "key"
	attrExpiredAt = "expired_at"
)

// Config defines the configuration options for the DynamoDB cache implementation.
type Config struct {
	DeleteExpiredItems bool // Controls if the expired_at TTL property is put in the database to allow automatic deletion of expired items

	ItemExpiration time.Duration // How long an item stays valid. Only used when DeleteExpiredItems is set; zero means caches.DefaultExpiredDuration.
	Table          string
}

// API is the subset of the DynamoDB client used by Cache.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Cache implements gofetchcache.Storage using Amazon DynamoDB as the storage
// backend. Each entry is written with a single PutItem, which DynamoDB applies
// atomically.
type Cache struct {
	client API

	table      string
	expiration time.Duration
	now        func() time.Time
}

type cacheItem struct {
	Key       string `json:"key" dynamodbav:"key"`
	Body      []byte `json:"body" dynamodbav:"body"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiredAt int64  `json:"expired_at,omitempty" dynamodbav:"expired_at,omitempty"`
}

// Exists reports whether a live item is stored under k. Items past their
// expiration are reported absent even before DynamoDB's TTL sweep removes them.
func (c *Cache) Exists(ctx context.Context, k string) (bool, error) {
	output, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key:                      c.key(k),
		ConsistentRead:           aws.Bool(true),
		TableName:                aws.String(c.table),
		ProjectionExpression:     aws.String("#k, #e"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey, "#e": attrExpiredAt},
	})
	if err != nil {
		return false, err
	}
	if output.Item == nil {
		return false, nil
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return false, err
	}

	return !c.expired(item), nil
}

// Read retrieves the body stored under k.
func (c *Cache) Read(ctx context.Context, k string) ([]byte, error) {
	output, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key:            c.key(k),
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(c.table),
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, caches.ErrNoCacheItem
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, err
	}
	if c.expired(item) {
		return nil, caches.ErrNoCacheItem
	}

	return caches.DecodeRecord(item.Body)
}

// WriteAtomic stores data under k, replacing any previous item.
func (c *Cache) WriteAtomic(ctx context.Context, k string, data []byte) error {
	if k == "" {
		return caches.ErrInvalidKey
	}

	createdAt := c.now()

	body, err := encodeBody(data, createdAt)
	if err != nil {
		return err
	}

	i := cacheItem{
		Key:       k,
		Body:      body,
		CreatedAt: createdAt.Unix(),
	}
	if c.expiration > 0 {
		i.ExpiredAt = createdAt.Add(c.expiration).Unix()
	}

	av, err := attributevalue.MarshalMap(i)
	if err != nil {
		return err
	}

	input := dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      av,
	}

	_, err = c.client.PutItem(ctx, &input)
	return err
}

func (c *Cache) Remove(ctx context.Context, k string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key:       c.key(k),
	})
	return err
}

func (c *Cache) key(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: k},
	}
}

func (c *Cache) expired(item cacheItem) bool {
	return item.ExpiredAt > 0 && c.now().UTC().Unix() >= item.ExpiredAt
}

// New creates a new DynamoDB cache instance with the provided configuration.
// It validates the configuration and sets default values where appropriate.
// Returns an error if the client is nil or if the configuration is invalid.
func New(ctx context.Context, client *dynamodb.Client, config *Config) (*Cache, error) {
	if client == nil {
		return nil, caches.ValidationError{
			Reason: "nil client",
		}
	}

	return NewWithAPI(ctx, client, config)
}

// NewWithAPI is New for any implementation of API.
func NewWithAPI(_ context.Context, client API, config *Config) (*Cache, error) {
	if client == nil {
		return nil, caches.ValidationError{
			Reason: "nil client",
		}
	}
	if config == nil || config.Table == "" {
		return nil, caches.ValidationError{
			Reason: "table name required",
		}
	}

	var itemExpiration time.Duration
	if config.DeleteExpiredItems {
		itemExpiration = config.ItemExpiration
		if itemExpiration == 0 {
			itemExpiration = caches.DefaultExpiredDuration
		}
	}

	return &Cache{
		client: client,

		table:      config.Table,
		expiration: itemExpiration,
		now:        time.Now,
	}, nil
}
