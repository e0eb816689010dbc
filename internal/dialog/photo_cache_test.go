package dialog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivolkov/matchbot/pkg/logging"
)

func newCacheRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPhotoCacheMissFetchesAndStores(t *testing.T) {
	mr, client := newCacheRedis(t)
	source := &fakePhotos{photos: []string{"photo42_1", "photo42_2"}}
	cache := NewPhotoCache(source, client, logging.NewWithWriter(io.Discard, "error"))

	photos, err := cache.TopPhotos(context.Background(), 42, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo42_1", "photo42_2"}, photos)
	assert.Equal(t, 1, source.calls)

	stored, err := mr.Get("photos:42")
	require.NoError(t, err)
	assert.JSONEq(t, `["photo42_1","photo42_2"]`, stored)
}

func TestPhotoCacheHitSkipsSource(t *testing.T) {
	_, client := newCacheRedis(t)
	source := &fakePhotos{photos: []string{"photo42_1"}}
	cache := NewPhotoCache(source, client, logging.NewWithWriter(io.Discard, "error"))

	_, err := cache.TopPhotos(context.Background(), 42, 3)
	require.NoError(t, err)

	photos, err := cache.TopPhotos(context.Background(), 42, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo42_1"}, photos)
	assert.Equal(t, 1, source.calls, "second call is served from redis")
}

func TestPhotoCacheHitRespectsLimit(t *testing.T) {
	mr, client := newCacheRedis(t)
	require.NoError(t, mr.Set("photos:42", `["photo42_1","photo42_2","photo42_3"]`))
	source := &fakePhotos{}
	cache := NewPhotoCache(source, client, logging.NewWithWriter(io.Discard, "error"))

	photos, err := cache.TopPhotos(context.Background(), 42, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo42_1", "photo42_2"}, photos)
	assert.Zero(t, source.calls)
}

func TestPhotoCacheCorruptEntryFallsThrough(t *testing.T) {
	mr, client := newCacheRedis(t)
	require.NoError(t, mr.Set("photos:42", "not json"))
	source := &fakePhotos{photos: []string{"photo42_9"}}
	cache := NewPhotoCache(source, client, logging.NewWithWriter(io.Discard, "error"))

	photos, err := cache.TopPhotos(context.Background(), 42, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo42_9"}, photos)
	assert.Equal(t, 1, source.calls)
}

func TestPhotoCacheNilRedisPassesThrough(t *testing.T) {
	source := &fakePhotos{photos: []string{"photo42_1"}}
	cache := NewPhotoCache(source, nil, logging.NewWithWriter(io.Discard, "error"))

	photos, err := cache.TopPhotos(context.Background(), 42, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo42_1"}, photos)
	assert.Equal(t, 1, source.calls)
}

func TestPhotoCacheSourceErrorPropagates(t *testing.T) {
	_, client := newCacheRedis(t)
	source := &fakePhotos{err: errors.New("photos closed")}
	cache := NewPhotoCache(source, client, logging.NewWithWriter(io.Discard, "error"))

	_, err := cache.TopPhotos(context.Background(), 42, 3)
	require.Error(t, err)
}
