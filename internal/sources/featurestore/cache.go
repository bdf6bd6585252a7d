package featurestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Meesho/BharatMLStack/weaver/pkg/infra"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RowCache is a look-aside cache over decoded feature rows. Cache failures
// degrade to a miss; the online store stays the source of truth.
type RowCache interface {
	Get(ctx context.Context, key string) (map[string]any, bool)
	Set(ctx context.Context, key string, row map[string]any, ttl time.Duration)
}

type redisRowCache struct {
	client *redis.Client
}

// NewRedisRowCache wraps the shared Redis connection from pkg/infra.
func NewRedisRowCache(connection *infra.RedisConnection) (RowCache, error) {
	if connection == nil {
		return nil, errors.New("connection cannot be nil")
	}
	client, err := connection.GetConn()
	if err != nil {
		return nil, err
	}
	return &redisRowCache{client: client.(*redis.Client)}, nil
}

func (c *redisRowCache) Get(ctx context.Context, key string) (map[string]any, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("feature row cache read failed")
		}
		return nil, false
	}
	row := make(map[string]any)
	if err := json.Unmarshal(data, &row); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding unparseable cached feature row")
		return nil, false
	}
	return row, true
}

func (c *redisRowCache) Set(ctx context.Context, key string, row map[string]any, ttl time.Duration) {
	data, err := json.Marshal(row)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("feature row cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("feature row cache write failed")
	}
}
