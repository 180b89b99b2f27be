package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/metrics"
)

const redisKeyPrefix = "competisearch:resp:"

// Redis is a shared response cache over Redis, for deployments running more
// than one replica. Failures degrade to cache misses; the cache never fails
// a request.
type Redis struct {
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a Redis-backed response cache.
func NewRedis(addrs []string, password string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

var _ ResponseCache = (*Redis)(nil)

// Get implements ResponseCache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	cmd := r.client.B().Get().Key(redisKey(key)).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			r.logger.Warn("response cache get failed", zap.Error(err))
		}
		metrics.CacheTotal.WithLabelValues("response", "miss").Inc()
		return nil, false
	}
	metrics.CacheTotal.WithLabelValues("response", "hit").Inc()
	return data, true
}

// Set implements ResponseCache.
func (r *Redis) Set(ctx context.Context, key string, value []byte) {
	cmd := r.client.B().Set().Key(redisKey(key)).Value(rueidis.BinaryString(value)).Ex(r.ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		r.logger.Warn("response cache set failed", zap.Error(err))
	}
}

// Close shuts down the client.
func (r *Redis) Close() {
	r.client.Close()
}

// redisKey hashes the canonical query key: the raw key is arbitrary-length
// JSON and Redis keys should stay short.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}
