// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import "net/http"

// Response is the outcome of one dispatched call.
type Response struct {
	// StatusCode is the HTTP status code. It is 0 when no response was
	// received from the server.
	StatusCode int

	// Header holds the response headers, if a response was received.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	// Value is the decoded JSON document. It is nil when Err is set and
	// for 204/205 responses.
	Value any

	// Err is set on transport failures and when the body cannot be decoded.
	Err error
}

// HasStatus reports whether a server response was received.
func (r Response) HasStatus() bool {
	return r.StatusCode != 0
}

// isAuthFailure reports whether the status indicates rejected credentials.
func (r Response) isAuthFailure() bool {
	return r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden
}
