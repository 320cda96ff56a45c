// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MemoryStore is an in-process Store. Entries are keyed by the SHA-256 hash
// of the token.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Authorization

	entryGauge metric.Int64UpDownCounter
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	meter := otel.Meter("github.com/andrewkroh/ghrest/internal/session")

	entryGauge, _ := meter.Int64UpDownCounter("ghrest.session.entries",
		metric.WithDescription("Current number of authorizations held in memory"),
	)

	return &MemoryStore{
		entries:    make(map[string]Authorization),
		entryGauge: entryGauge,
	}
}

// List returns all authorizations ordered by CreatedAt.
func (m *MemoryStore) List(_ context.Context) ([]Authorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	auths := make([]Authorization, 0, len(m.entries))
	for _, auth := range m.entries {
		auths = append(auths, auth)
	}
	sortByCreated(auths)
	return auths, nil
}

// Put stores auth, replacing any entry with the same token.
func (m *MemoryStore) Put(ctx context.Context, auth Authorization) error {
	key := hashToken(auth.Token)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		m.entryGauge.Add(ctx, 1)
	}
	m.entries[key] = auth
	return nil
}

// Delete removes the authorization holding token.
func (m *MemoryStore) Delete(ctx context.Context, token string) (bool, error) {
	key := hashToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		return false, nil
	}
	delete(m.entries, key)
	m.entryGauge.Add(ctx, -1)
	return true, nil
}

// Len returns the number of stored authorizations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
