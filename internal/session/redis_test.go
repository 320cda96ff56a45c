// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_PutListDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, Authorization{Token: "second", Login: "bob", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.Put(ctx, Authorization{Token: "first", Login: "alice", CreatedAt: base}))

	auths, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, auths, 2)
	assert.Equal(t, "alice", auths[0].Login)
	assert.Equal(t, "bob", auths[1].Login)

	// Fields are hashed tokens in the default key.
	assert.True(t, mr.Exists(DefaultRedisKey))
	assert.NotEmpty(t, mr.HGet(DefaultRedisKey, hashToken("first")))
	assert.Empty(t, mr.HGet(DefaultRedisKey, "first"))

	removed, err := store.Delete(ctx, "first")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "first")
	require.NoError(t, err)
	assert.False(t, removed)

	auths, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, "bob", auths[0].Login)
}

func TestRedisStore_CustomKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "tests:auth")
	require.NoError(t, store.Put(context.Background(), Authorization{Token: "abc"}))

	assert.True(t, mr.Exists("tests:auth"))
	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.HSet(DefaultRedisKey, "bogus", "{not json")

	_, err := store.List(context.Background())
	assert.ErrorContains(t, err, "decoding authorization")
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.List(context.Background())
	assert.Error(t, err)
	assert.Error(t, store.Put(context.Background(), Authorization{Token: "abc"}))
}

// Two sessions sharing one Redis hash behave like two processes.
func TestRedisStore_SharedSessionRemovesOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	a := New(store)
	b := New(store)
	auth := Authorization{Token: "abc", Login: "octocat"}
	require.NoError(t, a.Add(ctx, auth))

	var notified atomic.Int32
	a.Subscribe(func(Authorization) { notified.Add(1) })
	b.Subscribe(func(Authorization) { notified.Add(1) })

	var wg sync.WaitGroup
	for _, s := range []*Session{a, b, a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Remove(ctx, auth))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, notified.Load())
	_, err := b.Focused(ctx)
	assert.ErrorIs(t, err, ErrNoAuthorization)
}
