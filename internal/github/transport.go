// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Transport submits built requests to the network. Submit must return
// without waiting for the response and must call done exactly once, from
// any goroutine.
type Transport interface {
	Submit(ctx context.Context, req *http.Request, done func(Response))
}

// HTTPTransport is a Transport backed by an *http.Client. Each request runs
// on its own goroutine and the JSON body is decoded before done is called.
type HTTPTransport struct {
	httpClient *http.Client
	timeout    time.Duration
	log        *slog.Logger
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = hc
	}
}

// WithTimeout sets the timeout of the default HTTP client. It has no effect
// when combined with WithHTTPClient.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.timeout = d
	}
}

// WithTransportLogger sets the structured logger.
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.log = l
	}
}

// NewHTTPTransport creates a new HTTPTransport with the given options.
// By default it uses an http.Client with a 30 second timeout and
// slog.Default() as the logger.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		timeout: defaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: t.timeout}
	}
	return t
}

// Submit sends req on a new goroutine and reports the outcome through done.
func (t *HTTPTransport) Submit(ctx context.Context, req *http.Request, done func(Response)) {
	go func() {
		done(t.roundTrip(ctx, req))
	}()
}

func (t *HTTPTransport) roundTrip(ctx context.Context, req *http.Request) Response {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.log.DebugContext(ctx, "request failed", slog.String("url.path", req.URL.Path), slog.String("error", err.Error()))
		return Response{Err: fmt.Errorf("github: executing request: %w", err)}
	}
	defer resp.Body.Close()

	out := Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		out.Err = fmt.Errorf("github: reading response: %w", err)
		return out
	}
	out.Body = body

	// 204 and 205 never carry a document.
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent {
		return out
	}
	if len(body) == 0 {
		out.Err = ErrEmptyResponse
		return out
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		out.Err = fmt.Errorf("github: decoding response: %w", err)
		return out
	}
	out.Value = value
	return out
}
