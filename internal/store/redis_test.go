package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisStore_PutGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	r := sampleResult()
	r.HadImage = true
	require.NoError(t, s.PutResult(ctx, r))

	assert.True(t, mr.Exists("result:"+r.ID))
	assert.Equal(t, 10*time.Minute, mr.TTL("result:"+r.ID))

	got, err := s.GetResult(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.OriginalPrompt, got.OriginalPrompt)
	assert.Equal(t, r.Envelope, got.Envelope)
	assert.True(t, got.HadImage)
	assert.WithinDuration(t, r.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestRedisStore_MissingAndExpired(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	got, err := s.GetResult(ctx, NewID())
	require.NoError(t, err)
	assert.Nil(t, got)

	r := sampleResult()
	require.NoError(t, s.PutResult(ctx, r))
	mr.FastForward(2 * time.Minute)

	got, err = s.GetResult(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, time.Minute)

	id := NewID()
	require.NoError(t, mr.Set("result:"+id, "{not json"))

	_, err := s.GetResult(context.Background(), id)
	assert.Error(t, err)
}

func TestRedisStore_Unavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, time.Minute)
	mr.Close()

	err := s.PutResult(context.Background(), sampleResult())
	assert.Error(t, err)
}
