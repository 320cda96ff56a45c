// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import "maps"

// Method is an HTTP method supported by the GitHub REST API.
type Method string

// Supported methods.
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// Request describes a single intended API call. It is immutable once
// constructed; use NewRequest to build one.
type Request struct {
	path       string
	method     Method
	parameters map[string]any
	headers    map[string]string
	completion func(Response)
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithMethod sets the request method. The default is MethodGet.
func WithMethod(m Method) RequestOption {
	return func(r *Request) {
		r.method = m
	}
}

// WithParameters sets the request parameters. The map is copied.
func WithParameters(params map[string]any) RequestOption {
	return func(r *Request) {
		r.parameters = maps.Clone(params)
	}
}

// WithHeaders sets additional request headers. The map is copied.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		r.headers = maps.Clone(headers)
	}
}

// NewRequest returns a Request for path, relative to the API base URL.
// completion is called at most once with the outcome of the call.
func NewRequest(path string, completion func(Response), opts ...RequestOption) Request {
	r := Request{
		path:       path,
		method:     MethodGet,
		completion: completion,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Path returns the path relative to the API base URL.
func (r Request) Path() string { return r.path }

// Method returns the request method.
func (r Request) Method() Method { return r.method }

// Parameters returns a copy of the request parameters. The result is never nil.
func (r Request) Parameters() map[string]any {
	params := make(map[string]any, len(r.parameters)+1)
	maps.Copy(params, r.parameters)
	return params
}

// Headers returns a copy of the additional request headers, or nil if
// none were set.
func (r Request) Headers() map[string]string {
	return maps.Clone(r.headers)
}
