// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import "errors"

// Sentinel errors for GitHub API operations.
var (
	// ErrAuthorizationRevoked is reported by a Call whose credential was
	// rejected with 401 or 403. The completion callback is not invoked for
	// such calls and the authorization has been removed from the session.
	ErrAuthorizationRevoked = errors.New("github: authorization rejected and removed from session")

	// ErrCanceled is reported by a Call that was canceled before it finished.
	ErrCanceled = errors.New("github: call canceled")

	// ErrEmptyResponse is set on a Response whose body was empty for a
	// status that should carry content.
	ErrEmptyResponse = errors.New("github: empty response body")
)
