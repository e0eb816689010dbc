package dialog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ivolkov/matchbot/pkg/logging"
)

const (
	photoCacheKeyPrefix = "photos:"
	photoCacheTTL       = 15 * time.Minute
)

// PhotoCache memoizes ranked photo attachments per profile. A nil redis
// client turns it into a pass-through, and any cache error falls back to
// the underlying source.
type PhotoCache struct {
	source PhotoSource
	redis  *redis.Client
	tracer trace.Tracer
	logger *logging.Logger
}

func NewPhotoCache(source PhotoSource, redisClient *redis.Client, logger *logging.Logger) *PhotoCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &PhotoCache{
		source: source,
		redis:  redisClient,
		tracer: otel.Tracer("matchbot.internal.dialog.photo_cache"),
		logger: logger,
	}
}

func (c *PhotoCache) TopPhotos(ctx context.Context, ownerID int64, limit int) ([]string, error) {
	if c.redis == nil {
		return c.source.TopPhotos(ctx, ownerID, limit)
	}

	ctx, span := c.tracer.Start(ctx, "dialog.photo_cache.top_photos")
	defer span.End()

	key := photoCacheKey(ownerID)
	raw, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var photos []string
		if err := json.Unmarshal([]byte(raw), &photos); err == nil {
			if limit > 0 && len(photos) > limit {
				photos = photos[:limit]
			}
			return photos, nil
		}
		c.logger.Warn("photo cache entry corrupt", "key", key)
	} else if err != redis.Nil {
		span.RecordError(err)
		c.logger.Warn("photo cache read failed", "key", key, "error", err)
	}

	photos, err := c.source.TopPhotos(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(photos); err == nil {
		if err := c.redis.Set(ctx, key, data, photoCacheTTL).Err(); err != nil {
			span.RecordError(err)
			c.logger.Warn("photo cache write failed", "key", key, "error", err)
		}
	}
	return photos, nil
}

func photoCacheKey(ownerID int64) string {
	return photoCacheKeyPrefix + strconv.FormatInt(ownerID, 10)
}
