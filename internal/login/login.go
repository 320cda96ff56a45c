// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package login verifies a personal access token against the GitHub API and
// stores it in the session.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/andrewkroh/ghrest/internal/github"
	"github.com/andrewkroh/ghrest/internal/session"
)

// Sentinel errors returned by the Verifier.
var (
	ErrEmptyToken   = errors.New("login: token is empty")
	ErrUnauthorized = errors.New("login: token was rejected by GitHub")
)

const (
	resultSuccess      = "success"
	resultUnauthorized = "unauthorized"
	resultError        = "error"

	instrumentation = "github.com/andrewkroh/ghrest/internal/login"
)

// Verifier checks tokens by fetching the authenticated user.
type Verifier struct {
	session     *session.Session
	transport   github.Transport
	clientOpts  []github.Option
	log         *slog.Logger
	tracer      trace.Tracer
	verifyTotal metric.Int64Counter
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClientOptions passes opts to the github.Client used for verification,
// for example github.WithBaseURL.
func WithClientOptions(opts ...github.Option) Option {
	return func(v *Verifier) {
		v.clientOpts = append(v.clientOpts, opts...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		v.log = l
	}
}

// New creates a Verifier that stores verified tokens in sess.
func New(sess *session.Session, transport github.Transport, opts ...Option) *Verifier {
	meter := otel.Meter(instrumentation)
	verifyTotal, _ := meter.Int64Counter("ghrest.login.total",
		metric.WithDescription("Total number of token verifications"),
	)

	v := &Verifier{
		session:     sess,
		transport:   transport,
		log:         slog.Default(),
		tracer:      otel.Tracer(instrumentation),
		verifyTotal: verifyTotal,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify fetches the user that owns token. On success the token is added to
// the session as the focused authorization and returned. A token GitHub
// rejects yields ErrUnauthorized; if that token was already stored it is
// removed from the session.
func (v *Verifier) Verify(ctx context.Context, token string) (session.Authorization, error) {
	ctx, span := v.tracer.Start(ctx, "login.verify")
	defer span.End()

	if token == "" {
		return session.Authorization{}, v.fail(ctx, span, resultUnauthorized, ErrEmptyToken)
	}

	candidate := session.Authorization{Token: token}
	opts := append([]github.Option{github.WithLogger(v.log)}, v.clientOpts...)
	opts = append(opts, github.WithAuthorization(candidate))
	client := github.NewClient(v.session, v.transport, opts...)

	var resp github.Response
	call := client.Dispatch(ctx, github.NewRequest("user", func(r github.Response) {
		resp = r
	}))

	if err := call.Wait(ctx); err != nil {
		if errors.Is(err, github.ErrAuthorizationRevoked) {
			return session.Authorization{}, v.fail(ctx, span, resultUnauthorized, ErrUnauthorized)
		}
		call.Cancel()
		return session.Authorization{}, v.fail(ctx, span, resultError, fmt.Errorf("login: fetching user: %w", err))
	}
	if resp.Err != nil {
		return session.Authorization{}, v.fail(ctx, span, resultError, fmt.Errorf("login: fetching user: %w", resp.Err))
	}
	if resp.StatusCode != http.StatusOK {
		return session.Authorization{}, v.fail(ctx, span, resultError, fmt.Errorf("login: fetching user: unexpected status %d", resp.StatusCode))
	}

	var user github.User
	if err := github.DecodeValue(resp, &user); err != nil {
		return session.Authorization{}, v.fail(ctx, span, resultError, fmt.Errorf("login: %w", err))
	}
	if user.Login == "" {
		return session.Authorization{}, v.fail(ctx, span, resultError, errors.New("login: user response has no login"))
	}

	auth := session.Authorization{
		Token:     token,
		Login:     user.Login,
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := v.session.Add(ctx, auth); err != nil {
		return session.Authorization{}, v.fail(ctx, span, resultError, fmt.Errorf("login: %w", err))
	}

	span.SetAttributes(
		attribute.String("auth.user.login", user.Login),
		attribute.String("auth.result", resultSuccess),
	)
	v.verifyTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", resultSuccess)))
	v.log.InfoContext(ctx, "Token verified",
		slog.String("login", user.Login),
		slog.Int64("user_id", user.ID),
	)
	return auth, nil
}

func (v *Verifier) fail(ctx context.Context, span trace.Span, result string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("auth.result", result))
	v.verifyTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	if result == resultUnauthorized {
		v.log.WarnContext(ctx, "Token verification failed: unauthorized")
	} else {
		v.log.ErrorContext(ctx, "Token verification failed", slog.String("error", err.Error()))
	}
	return err
}
