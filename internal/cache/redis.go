package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/videoscribe/internal/models"
)

const keyPrefix = "videoscribe:video:"

// Redis is a Cache shared by every instance pointed at the same Redis. Entries expire by TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a Redis-backed cache. ttl <= 0 keeps entries until evicted by Redis.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached record; Redis errors are logged and reported as a miss.
func (r *Redis) Get(ctx context.Context, id string) (models.VideoRecord, bool) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("cache get failed", zap.String("video_id", id), zap.Error(err))
		}
		return models.VideoRecord{}, false
	}
	var rec models.VideoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		r.logger.Warn("cache entry corrupt", zap.String("video_id", id), zap.Error(err))
		return models.VideoRecord{}, false
	}
	return rec, true
}

// Put stores rec; failures are logged only.
func (r *Redis) Put(ctx context.Context, rec models.VideoRecord) {
	if rec.ID == "" {
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		r.logger.Warn("cache marshal failed", zap.String("video_id", rec.ID), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, keyPrefix+rec.ID, body, r.ttl).Err(); err != nil {
		r.logger.Warn("cache put failed", zap.String("video_id", rec.ID), zap.Error(err))
	}
}

// List scans every cached record. Partial results are returned on error.
func (r *Redis) List(ctx context.Context) []models.VideoRecord {
	var keys []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("cache scan failed", zap.Error(err))
	}
	if len(keys) == 0 {
		return nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Warn("cache mget failed", zap.Error(err))
		return nil
	}
	out := make([]models.VideoRecord, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var rec models.VideoRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}
