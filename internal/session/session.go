// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package session stores the GitHub authorizations known to the client and
// notifies subscribers when one is removed.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ErrNoAuthorization is returned when the session holds no authorization.
var ErrNoAuthorization = errors.New("session: no authorization stored")

// Authorization is a stored GitHub credential.
type Authorization struct {
	// Token is the GitHub access token.
	Token string `json:"token"`

	// Login is the GitHub username the token belongs to.
	Login string `json:"login,omitempty"`

	// UserID is the GitHub user ID the token belongs to.
	UserID int64 `json:"user_id,omitempty"`

	// CreatedAt is when the authorization was added to the session.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists authorizations. Implementations must be safe for
// concurrent use.
type Store interface {
	// List returns all stored authorizations ordered by CreatedAt.
	List(ctx context.Context) ([]Authorization, error)

	// Put stores auth, replacing any entry with the same token.
	Put(ctx context.Context, auth Authorization) error

	// Delete removes the authorization holding token. It reports whether
	// an entry was removed; deleting an absent token is not an error.
	Delete(ctx context.Context, token string) (bool, error)
}

// Session manages the authorizations in a Store. Only the most recently
// added authorization is used for requests; it is called the focused
// authorization.
type Session struct {
	store Store
	log   *slog.Logger

	mu        sync.Mutex
	listeners map[int]func(Authorization)
	nextID    int

	removals metric.Int64Counter
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// New returns a Session backed by store.
func New(store Store, opts ...Option) *Session {
	meter := otel.Meter("github.com/andrewkroh/ghrest/internal/session")

	removals, _ := meter.Int64Counter("ghrest.session.removals",
		metric.WithDescription("Number of authorizations removed from the session"),
	)

	s := &Session{
		store:     store,
		log:       slog.Default(),
		listeners: make(map[int]func(Authorization)),
		removals:  removals,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores auth and makes it the focused authorization. A zero CreatedAt
// is set to the current time.
func (s *Session) Add(ctx context.Context, auth Authorization) error {
	if auth.Token == "" {
		return errors.New("session: authorization has no token")
	}
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now().UTC()
	}
	if err := s.store.Put(ctx, auth); err != nil {
		return fmt.Errorf("session: storing authorization: %w", err)
	}
	s.log.InfoContext(ctx, "authorization added", slog.String("login", auth.Login))
	return nil
}

// Authorizations returns every stored authorization, oldest first.
func (s *Session) Authorizations(ctx context.Context) ([]Authorization, error) {
	auths, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: listing authorizations: %w", err)
	}
	return auths, nil
}

// Focused returns the most recently added authorization, or
// ErrNoAuthorization if there is none.
func (s *Session) Focused(ctx context.Context) (Authorization, error) {
	auths, err := s.Authorizations(ctx)
	if err != nil {
		return Authorization{}, err
	}
	if len(auths) == 0 {
		return Authorization{}, ErrNoAuthorization
	}
	return auths[len(auths)-1], nil
}

// Remove deletes auth from the session. Removing an authorization that is
// not stored is a no-op. Subscribers are notified once per authorization
// actually removed, so concurrent removals of the same credential produce a
// single notification.
func (s *Session) Remove(ctx context.Context, auth Authorization) error {
	removed, err := s.store.Delete(ctx, auth.Token)
	if err != nil {
		return fmt.Errorf("session: removing authorization: %w", err)
	}
	if !removed {
		s.log.DebugContext(ctx, "authorization already removed", slog.String("login", auth.Login))
		return nil
	}

	s.removals.Add(ctx, 1)
	s.log.InfoContext(ctx, "authorization removed", slog.String("login", auth.Login))

	for _, fn := range s.subscribers() {
		fn(auth)
	}
	return nil
}

// Subscribe registers fn to be called after an authorization is removed.
// The returned function unregisters it.
func (s *Session) Subscribe(fn func(Authorization)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) subscribers() []func(Authorization) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]func(Authorization), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	return fns
}

// hashToken returns the hex-encoded SHA-256 hash of the raw token. Stores
// that index by token use the hash so the raw token is never a key.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// sortByCreated orders auths oldest first.
func sortByCreated(auths []Authorization) {
	slices.SortStableFunc(auths, func(a, b Authorization) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
