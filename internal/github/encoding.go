// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	acceptHeader    = "application/vnd.github+json"
	jsonContentType = "application/json"
)

// joinURL appends path to base, collapsing the slashes at the join. The
// path is not escaped.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// buildHTTPRequest encodes params for method and returns the request to
// submit. GET parameters go into the query string, all other methods carry
// them as a JSON body.
func buildHTTPRequest(ctx context.Context, method Method, rawURL string, params map[string]any) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("github: parsing url: %w", err)
	}

	if method == MethodGet {
		normalized, err := normalizeParams(params)
		if err != nil {
			return nil, err
		}
		if query := encodeQuery(normalized); query != "" {
			if u.RawQuery != "" {
				u.RawQuery += "&" + query
			} else {
				u.RawQuery = query
			}
		}
		req, err := http.NewRequestWithContext(ctx, string(method), u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("github: creating request: %w", err)
		}
		return req, nil
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("github: encoding parameters: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, string(method), u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	req.Header.Set("Content-Type", jsonContentType)
	return req, nil
}

// normalizeParams round-trips params through JSON so that typed slices,
// maps and structs reach encodeQuery as the []any, map[string]any and scalar
// values a JSON body would carry. Numbers are kept as json.Number.
func normalizeParams(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("github: encoding parameters: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("github: encoding parameters: %w", err)
	}
	return out, nil
}

// encodeQuery form-encodes params with keys in sorted order. Nested maps
// become key[sub] and slices become repeated key[] entries.
func encodeQuery(params map[string]any) string {
	values := url.Values{}
	for key, value := range params {
		appendQueryValue(values, key, value)
	}
	return values.Encode()
}

func appendQueryValue(values url.Values, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for sub, nested := range v {
			appendQueryValue(values, key+"["+sub+"]", nested)
		}
	case []any:
		for _, item := range v {
			appendQueryValue(values, key+"[]", item)
		}
	case []string:
		for _, item := range v {
			values.Add(key+"[]", item)
		}
	default:
		values.Add(key, queryScalar(v))
	}
}

func queryScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
