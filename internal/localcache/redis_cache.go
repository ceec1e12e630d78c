package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

const defaultKeyPrefix = "resumate:"

var errMissingClient = errors.New("redis client is required")

// RedisConfig describes the dependencies of the Redis-backed cache.
type RedisConfig struct {
	Client *redis.Client
	Prefix string
	// TTL bounds how long a snapshot survives; zero keeps it until deleted.
	TTL    time.Duration
	Clock  func() time.Time
	Logger *zap.Logger
}

// RedisCache stores snapshots in Redis, one key per document plus a set per owner.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// OpenRedis connects to redisURL and verifies the connection.
func OpenRedis(ctx context.Context, redisURL string, cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, newServiceError(opNew, "parse_url_failed", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, newServiceError(opNew, "connect_failed", err)
	}
	cfg.Client = client
	return NewRedisCache(cfg)
}

// NewRedisCache wraps an existing client.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if cfg.Client == nil {
		return nil, newServiceError(opNew, reasonMissingClient, errMissingClient)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{client: cfg.Client, prefix: prefix, ttl: cfg.TTL, clock: clock, logger: log}, nil
}

func (c *RedisCache) draftKey(id resumes.DocumentID) string {
	return fmt.Sprintf("%sdraft:%s", c.prefix, id)
}

func (c *RedisCache) ownerKey(owner resumes.OwnerID) string {
	return fmt.Sprintf("%sdrafts:%s", c.prefix, owner)
}

// Put replaces the snapshot for the document.
func (c *RedisCache) Put(ctx context.Context, document resumes.Document) error {
	entry, err := entryFromDocument(document, c.clock())
	if err != nil {
		return newServiceError(opPut, reasonEncodeFailed, err)
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return newServiceError(opPut, reasonEncodeFailed, err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.draftKey(document.ID), encoded, c.ttl)
		pipe.SAdd(ctx, c.ownerKey(document.OwnerID), document.ID.String())
		return nil
	})
	if err != nil {
		c.logError(opPut, reasonWriteFailed, err, zap.String(fieldDocumentID, document.ID.String()))
		return newServiceError(opPut, reasonWriteFailed, err)
	}
	return nil
}

// Get returns the snapshot for id and whether one exists.
func (c *RedisCache) Get(ctx context.Context, id resumes.DocumentID) (resumes.Document, bool, error) {
	entry, found, err := c.entry(ctx, id)
	if err != nil {
		return resumes.Document{}, false, newServiceError(opGet, reasonReadFailed, err)
	}
	if !found {
		return resumes.Document{}, false, nil
	}
	document, err := entry.document()
	if err != nil {
		c.logError(opGet, reasonDecodeFailed, err, zap.String(fieldDocumentID, id.String()))
		return resumes.Document{}, false, newServiceError(opGet, reasonDecodeFailed, err)
	}
	return document, true, nil
}

// Delete removes the snapshot for id. A missing snapshot is not an error.
func (c *RedisCache) Delete(ctx context.Context, id resumes.DocumentID) error {
	entry, found, err := c.entry(ctx, id)
	if err != nil {
		return newServiceError(opDelete, reasonReadFailed, err)
	}
	if !found {
		return nil
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.draftKey(id))
		pipe.SRem(ctx, c.ownerKey(resumes.OwnerID(entry.OwnerID)), id.String())
		return nil
	})
	if err != nil {
		c.logError(opDelete, reasonWriteFailed, err, zap.String(fieldDocumentID, id.String()))
		return newServiceError(opDelete, reasonWriteFailed, err)
	}
	return nil
}

// List returns the owner's cached drafts, newest first. Members whose key
// expired are pruned from the owner set.
func (c *RedisCache) List(ctx context.Context, owner resumes.OwnerID) ([]Draft, error) {
	members, err := c.client.SMembers(ctx, c.ownerKey(owner)).Result()
	if err != nil {
		c.logError(opList, reasonReadFailed, err, zap.String("owner_id", owner.String()))
		return nil, newServiceError(opList, reasonReadFailed, err)
	}
	drafts := make([]Draft, 0, len(members))
	for _, member := range members {
		id := resumes.DocumentID(member)
		entry, found, err := c.entry(ctx, id)
		if err != nil {
			return nil, newServiceError(opList, reasonReadFailed, err)
		}
		if !found {
			c.client.SRem(ctx, c.ownerKey(owner), member)
			continue
		}
		drafts = append(drafts, entry.draft())
	}
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].CachedAt.After(drafts[j].CachedAt)
	})
	return drafts, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) entry(ctx context.Context, id resumes.DocumentID) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		c.logError(opGet, reasonReadFailed, err, zap.String(fieldDocumentID, id.String()))
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode entry: %w", err)
	}
	return entry, true, nil
}

func (c *RedisCache) logError(operation, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	if err != nil {
		allFields = append(allFields, zap.Error(err))
	}
	c.logger.Error("local cache operation failed", allFields...)
}
