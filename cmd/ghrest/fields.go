// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andrewkroh/ghrest/internal/github"
)

func parseMethod(s string) (github.Method, error) {
	m := github.Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case github.MethodGet, github.MethodPost, github.MethodPut, github.MethodPatch, github.MethodDelete:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported method %q", s)
	}
}

// parseFields converts key=value pairs into request parameters. A key with
// a [] suffix collects its values into a slice under the bare key.
func parseFields(fields []string) (map[string]any, error) {
	params := make(map[string]any, len(fields))
	for _, field := range fields {
		key, raw, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", field)
		}

		if name, isArray := strings.CutSuffix(key, "[]"); isArray {
			if name == "" {
				return nil, fmt.Errorf("invalid field %q, expected key=value", field)
			}
			list, _ := params[name].([]any)
			params[name] = append(list, fieldValue(raw))
			continue
		}
		params[key] = fieldValue(raw)
	}
	return params, nil
}

// fieldValue converts true, false, null and integers to their JSON types.
// Anything else stays a string.
func fieldValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

// parseHeaders converts "Name: value" strings into a header map.
func parseHeaders(headers []string) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
