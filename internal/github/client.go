// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/andrewkroh/ghrest/internal/session"
)

const (
	// DefaultBaseURL is the public GitHub REST API origin.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTokenKey is the parameter the access token is sent under.
	DefaultTokenKey = "access_token"

	defaultUserAgent = "ghrest"
	instrumentation  = "github.com/andrewkroh/ghrest/internal/github"
)

// Call result attribute values used for OTel metrics and spans.
const (
	resultSuccess     = "success"
	resultError       = "error"
	resultAuthFailure = "auth_failure"
	resultCanceled    = "canceled"
)

// Session is the part of the session the Client may mutate. Remove must be
// idempotent and safe to call concurrently.
type Session interface {
	Remove(ctx context.Context, auth session.Authorization) error
}

// Client dispatches Requests against the GitHub REST API. A Client is safe
// for concurrent use; every Dispatch is independent.
type Client struct {
	session       Session
	transport     Transport
	authorization *session.Authorization

	baseURL   string
	tokenKey  string
	userAgent string
	log       *slog.Logger

	tracer       trace.Tracer
	requests     metric.Int64Counter
	authFailures metric.Int64Counter
	duration     metric.Float64Histogram
}

// Option configures a Client.
type Option func(*Client)

// WithAuthorization makes the Client send auth's token with every request.
// Without it requests are unauthenticated.
func WithAuthorization(auth session.Authorization) Option {
	return func(c *Client) {
		c.authorization = &auth
	}
}

// WithBaseURL sets the base URL for the GitHub API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTokenKey sets the parameter name the access token is sent under.
func WithTokenKey(key string) Option {
	return func(c *Client) {
		c.tokenKey = key
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a Client that submits requests through transport and
// reports rejected credentials to sess. By default it uses
// https://api.github.com as the base URL, access_token as the token key,
// and slog.Default() as the logger.
func NewClient(sess Session, transport Transport, opts ...Option) *Client {
	meter := otel.Meter(instrumentation)

	requests, _ := meter.Int64Counter("ghrest.client.requests",
		metric.WithDescription("Number of dispatched requests by outcome"),
	)
	authFailures, _ := meter.Int64Counter("ghrest.client.auth_failures",
		metric.WithDescription("Number of requests whose credential was rejected"),
	)
	duration, _ := meter.Float64Histogram("ghrest.client.duration",
		metric.WithDescription("Time from dispatch to completion"),
		metric.WithUnit("s"),
	)

	c := &Client{
		session:      sess,
		transport:    transport,
		baseURL:      DefaultBaseURL,
		tokenKey:     DefaultTokenKey,
		userAgent:    defaultUserAgent,
		log:          slog.Default(),
		tracer:       otel.Tracer(instrumentation),
		requests:     requests,
		authFailures: authFailures,
		duration:     duration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authorization returns the authorization the Client sends, if any.
func (c *Client) Authorization() (session.Authorization, bool) {
	if c.authorization == nil {
		return session.Authorization{}, false
	}
	return *c.authorization, true
}

// Dispatch submits req and returns immediately with a handle for the
// in-flight call.
//
// When the Client holds an authorization and the server answers 401 or 403,
// the authorization is removed from the session and req's completion is not
// invoked; the Call reports ErrAuthorizationRevoked. Every other outcome,
// including transport failures, is passed to the completion exactly once.
// Canceling ctx has the same effect as calling Cancel on the returned Call.
func (c *Client) Dispatch(ctx context.Context, req Request) *Call {
	ctx, cancel := context.WithCancel(ctx)
	call := newCall(req, cancel)
	context.AfterFunc(ctx, call.Cancel)
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "github.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", string(req.Method())),
			attribute.String("url.path", req.Path()),
			attribute.String("ghrest.call.id", call.ID()),
			attribute.Bool("ghrest.authenticated", c.authorization != nil),
		),
	)

	c.log.DebugContext(ctx, "dispatching request",
		slog.String("method", string(req.Method())),
		slog.String("path", req.Path()),
		slog.String("call_id", call.ID()),
	)

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		// Deliver asynchronously like any other transport-level failure.
		go c.handle(ctx, span, call, req, start, Response{Err: err})
		return call
	}

	c.transport.Submit(ctx, httpReq, func(resp Response) {
		c.handle(ctx, span, call, req, start, resp)
	})
	return call
}

// newHTTPRequest encodes req, merging in the access token when the Client
// holds an authorization. req is never mutated.
func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	params := req.Parameters()
	if c.authorization != nil {
		params[c.tokenKey] = c.authorization.Token
	}

	httpReq, err := buildHTTPRequest(ctx, req.Method(), joinURL(c.baseURL, req.Path()), params)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("User-Agent", c.userAgent)
	for name, value := range req.Headers() {
		httpReq.Header.Set(name, value)
	}
	return httpReq, nil
}

// handle routes a finished response to the session or to the completion.
func (c *Client) handle(ctx context.Context, span trace.Span, call *Call, req Request, start time.Time, resp Response) {
	defer span.End()

	if resp.HasStatus() {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}

	if c.authorization != nil && resp.isAuthFailure() {
		c.revoke(ctx, span, call, req, start, resp)
		return
	}

	// A done context with the call still pending means the caller's context
	// was canceled; treat it like Cancel.
	if ctx.Err() != nil || !call.claim(callCompleted) {
		call.Cancel()
		c.record(ctx, span, req, start, resultCanceled)
		c.log.DebugContext(ctx, "dropping response for canceled call", slog.String("call_id", call.ID()))
		return
	}

	result := resultSuccess
	if resp.Err != nil {
		result = resultError
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
		c.log.WarnContext(ctx, "request failed",
			slog.String("path", req.Path()),
			slog.Int("status", resp.StatusCode),
			slog.String("error", resp.Err.Error()),
		)
	} else {
		c.log.DebugContext(ctx, "request completed",
			slog.String("path", req.Path()),
			slog.Int("status", resp.StatusCode),
		)
	}
	c.record(ctx, span, req, start, result)

	if req.completion != nil {
		req.completion(resp)
	}
	call.settle(nil)
}

// revoke removes the rejected authorization from the session. The caller's
// completion is intentionally not invoked.
func (c *Client) revoke(ctx context.Context, span trace.Span, call *Call, req Request, start time.Time, resp Response) {
	span.RecordError(ErrAuthorizationRevoked)
	span.SetStatus(codes.Error, ErrAuthorizationRevoked.Error())
	c.authFailures.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", resp.StatusCode)))
	c.record(ctx, span, req, start, resultAuthFailure)

	c.log.WarnContext(ctx, "credential rejected, removing authorization",
		slog.String("path", req.Path()),
		slog.Int("status", resp.StatusCode),
		slog.String("login", c.authorization.Login),
	)

	// The call may already be canceled; the credential is invalid either way.
	if err := c.session.Remove(context.WithoutCancel(ctx), *c.authorization); err != nil {
		c.log.ErrorContext(ctx, "failed to remove authorization", slog.String("error", err.Error()))
	}

	if call.claim(callRevoked) {
		call.settle(ErrAuthorizationRevoked)
	}
}

func (c *Client) record(ctx context.Context, span trace.Span, req Request, start time.Time, result string) {
	attrs := metric.WithAttributes(
		attribute.String("method", string(req.Method())),
		attribute.String("result", result),
	)
	span.SetAttributes(attribute.String("ghrest.result", result))
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
