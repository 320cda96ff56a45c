// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package github dispatches requests to the GitHub REST API on behalf of a
// stored authorization and removes that authorization when GitHub rejects it.
package github

import (
	"encoding/json"
	"fmt"
)

// User represents a GitHub user profile.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// DecodeValue converts a decoded response value into out, which must be a
// pointer.
func DecodeValue(resp Response, out any) error {
	if resp.Err != nil {
		return resp.Err
	}
	data, err := json.Marshal(resp.Value)
	if err != nil {
		return fmt.Errorf("github: re-encoding value: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("github: decoding value: %w", err)
	}
	return nil
}
