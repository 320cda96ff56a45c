// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash key used when none is configured.
const DefaultRedisKey = "ghrest:authorizations"

// RedisStore keeps authorizations in a single Redis hash so that several
// processes share one session. Fields are the SHA-256 hash of the token.
// Removal uses HDEL, which makes concurrent removals of the same credential
// from different processes report a single deletion.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore returns a RedisStore using client and the hash at key. An
// empty key selects DefaultRedisKey.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// List returns all authorizations ordered by CreatedAt.
func (r *RedisStore) List(ctx context.Context) ([]Authorization, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", r.key, err)
	}

	auths := make([]Authorization, 0, len(fields))
	for field, raw := range fields {
		var auth Authorization
		if err := json.Unmarshal([]byte(raw), &auth); err != nil {
			return nil, fmt.Errorf("decoding authorization %s: %w", field, err)
		}
		auths = append(auths, auth)
	}
	sortByCreated(auths)
	return auths, nil
}

// Put stores auth, replacing any entry with the same token.
func (r *RedisStore) Put(ctx context.Context, auth Authorization) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("encoding authorization: %w", err)
	}
	if err := r.client.HSet(ctx, r.key, hashToken(auth.Token), data).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", r.key, err)
	}
	return nil
}

// Delete removes the authorization holding token.
func (r *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.client.HDel(ctx, r.key, hashToken(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis HDEL %s: %w", r.key, err)
	}
	return n > 0, nil
}
