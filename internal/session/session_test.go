// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time checks that every store satisfies Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func TestSession_AddAndFocused(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	_, err := s.Focused(ctx)
	assert.ErrorIs(t, err, ErrNoAuthorization)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(ctx, Authorization{Token: "first", Login: "alice", CreatedAt: base}))
	require.NoError(t, s.Add(ctx, Authorization{Token: "second", Login: "bob", CreatedAt: base.Add(time.Minute)}))

	focused, err := s.Focused(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", focused.Token)

	auths, err := s.Authorizations(ctx)
	require.NoError(t, err)
	require.Len(t, auths, 2)
	assert.Equal(t, "first", auths[0].Token)
	assert.Equal(t, "second", auths[1].Token)
}

func TestSession_AddSetsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	require.NoError(t, s.Add(ctx, Authorization{Token: "abc"}))

	focused, err := s.Focused(ctx)
	require.NoError(t, err)
	assert.False(t, focused.CreatedAt.IsZero())
}

func TestSession_AddRejectsEmptyToken(t *testing.T) {
	s := New(NewMemoryStore())
	assert.Error(t, s.Add(context.Background(), Authorization{Login: "alice"}))
}

func TestSession_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())
	auth := Authorization{Token: "abc", Login: "octocat"}
	require.NoError(t, s.Add(ctx, auth))

	var notified atomic.Int32
	s.Subscribe(func(Authorization) { notified.Add(1) })

	require.NoError(t, s.Remove(ctx, auth))
	require.NoError(t, s.Remove(ctx, auth))
	require.NoError(t, s.Remove(ctx, Authorization{Token: "never-added"}))

	assert.EqualValues(t, 1, notified.Load())
	_, err := s.Focused(ctx)
	assert.ErrorIs(t, err, ErrNoAuthorization)
}

func TestSession_ConcurrentRemoveNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())
	auth := Authorization{Token: "abc"}
	require.NoError(t, s.Add(ctx, auth))

	var notified atomic.Int32
	s.Subscribe(func(Authorization) { notified.Add(1) })

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Remove(ctx, auth))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, notified.Load())
}

func TestSession_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	var first, second atomic.Int32
	unsubscribe := s.Subscribe(func(Authorization) { first.Add(1) })
	s.Subscribe(func(Authorization) { second.Add(1) })
	unsubscribe()

	require.NoError(t, s.Add(ctx, Authorization{Token: "abc"}))
	require.NoError(t, s.Remove(ctx, Authorization{Token: "abc"}))

	assert.EqualValues(t, 0, first.Load())
	assert.EqualValues(t, 1, second.Load())
}

// failingStore returns err from every operation.
type failingStore struct{ err error }

func (f failingStore) List(context.Context) ([]Authorization, error) { return nil, f.err }
func (f failingStore) Put(context.Context, Authorization) error { return f.err }
func (f failingStore) Delete(context.Context, string) (bool, error) { return false, f.err }

func TestSession_StoreErrors(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("store unavailable")
	s := New(failingStore{err: storeErr})

	assert.ErrorIs(t, s.Add(ctx, Authorization{Token: "abc"}), storeErr)
	assert.ErrorIs(t, s.Remove(ctx, Authorization{Token: "abc"}), storeErr)
	_, err := s.Focused(ctx)
	assert.ErrorIs(t, err, storeErr)
}
