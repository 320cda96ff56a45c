// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	now := time.Now()
	if err := m.Put(ctx, Authorization{Token: "b", CreatedAt: now.Add(time.Second)}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := m.Put(ctx, Authorization{Token: "a", CreatedAt: now}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	auths, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(auths) != 2 {
		t.Fatalf("List length: got %d, want 2", len(auths))
	}
	if auths[0].Token != "a" || auths[1].Token != "b" {
		t.Fatalf("List order: got %q, %q, want a, b", auths[0].Token, auths[1].Token)
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	m.Put(ctx, Authorization{Token: "abc", Login: "old"})
	m.Put(ctx, Authorization{Token: "abc", Login: "new"})

	if m.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", m.Len())
	}
	auths, _ := m.List(ctx)
	if auths[0].Login != "new" {
		t.Fatalf("Login: got %q, want %q", auths[0].Login, "new")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Put(ctx, Authorization{Token: "abc"})

	removed, err := m.Delete(ctx, "abc")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !removed {
		t.Fatal("expected first Delete to report removal")
	}

	removed, err = m.Delete(ctx, "abc")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if removed {
		t.Fatal("expected second Delete to be a no-op")
	}
	if m.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", m.Len())
	}
}

func TestMemoryStore_KeysAreHashed(t *testing.T) {
	m := NewMemoryStore()
	m.Put(context.Background(), Authorization{Token: "secret-token"})

	m.mu.RLock()
	defer m.mu.RUnlock()
	for key := range m.entries {
		if key == "secret-token" {
			t.Fatal("raw token used as key")
		}
		if key != hashToken("secret-token") {
			t.Fatalf("key: got %q, want hash of token", key)
		}
	}
}

func TestMemoryStore_ConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Put(ctx, Authorization{Token: "abc"})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := m.Delete(ctx, "abc")
			if ok {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if removed != 1 {
		t.Fatalf("removals: got %d, want 1", removed)
	}
}
