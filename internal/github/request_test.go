// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest_Defaults(t *testing.T) {
	req := NewRequest("user", nil)

	assert.Equal(t, "user", req.Path())
	assert.Equal(t, MethodGet, req.Method())
	assert.NotNil(t, req.Parameters())
	assert.Empty(t, req.Parameters())
	assert.Nil(t, req.Headers())
}

func TestNewRequest_Options(t *testing.T) {
	req := NewRequest("repos/x/issues", nil,
		WithMethod(MethodPatch),
		WithParameters(map[string]any{"state": "closed"}),
		WithHeaders(map[string]string{"X-GitHub-Api-Version": "2022-11-28"}),
	)

	assert.Equal(t, MethodPatch, req.Method())
	assert.Equal(t, map[string]any{"state": "closed"}, req.Parameters())
	assert.Equal(t, map[string]string{"X-GitHub-Api-Version": "2022-11-28"}, req.Headers())
}

func TestNewRequest_IsImmutable(t *testing.T) {
	params := map[string]any{"title": "bug"}
	headers := map[string]string{"Accept": "application/json"}
	req := NewRequest("repos/x/issues", nil, WithParameters(params), WithHeaders(headers))

	// Changes to the caller's maps after construction are not observed.
	params["title"] = "feature"
	headers["Accept"] = "text/plain"
	assert.Equal(t, "bug", req.Parameters()["title"])
	assert.Equal(t, "application/json", req.Headers()["Accept"])

	// Changes to the returned copies are not observed either.
	req.Parameters()["title"] = "other"
	req.Headers()["Accept"] = "other"
	assert.Equal(t, "bug", req.Parameters()["title"])
	assert.Equal(t, "application/json", req.Headers()["Accept"])
}
