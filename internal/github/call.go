// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	callPending int32 = iota
	callCompleted
	callRevoked
	callCanceled
)

// Call is the handle for an in-flight request returned by Client.Dispatch.
// A Call ends in exactly one of three ways: the completion callback ran,
// the credential was rejected (ErrAuthorizationRevoked), or it was canceled
// (ErrCanceled).
type Call struct {
	id     string
	method Method
	path   string
	cancel context.CancelFunc

	state atomic.Int32
	done  chan struct{}
	err   error
}

func newCall(req Request, cancel context.CancelFunc) *Call {
	return &Call{
		id:     uuid.New().String(),
		method: req.Method(),
		path:   req.Path(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns a unique identifier for the call.
func (c *Call) ID() string { return c.id }

// Method returns the method of the dispatched request.
func (c *Call) Method() Method { return c.method }

// Path returns the path of the dispatched request.
func (c *Call) Path() string { return c.path }

// Cancel abandons the call. If the call has not finished yet, the underlying
// request is aborted and the completion callback will not run.
func (c *Call) Cancel() {
	if !c.claim(callCanceled) {
		return
	}
	c.settle(ErrCanceled)
}

// Done returns a channel that is closed once the call has finished.
func (c *Call) Done() <-chan struct{} { return c.done }

// Err returns nil if the completion callback ran, ErrAuthorizationRevoked
// if the credential was rejected, or ErrCanceled if the call was canceled.
// It returns nil while the call is still in flight.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the call finishes or ctx is done, and returns Err.
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim moves the call out of the pending state. Only the first caller wins.
func (c *Call) claim(state int32) bool {
	return c.state.CompareAndSwap(callPending, state)
}

// settle records the outcome, releases the request context and wakes
// waiters. Must only be called by the goroutine that won claim.
func (c *Call) settle(err error) {
	c.err = err
	c.cancel()
	close(c.done)
}
