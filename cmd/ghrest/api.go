// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/andrewkroh/ghrest/internal/github"
	"github.com/andrewkroh/ghrest/internal/session"
)

func (a *app) apiCmd() *cobra.Command {
	var (
		method  string
		fields  []string
		headers []string
		include bool
	)

	cmd := &cobra.Command{
		Use:   "api PATH",
		Short: "Send a request to a GitHub API path",
		Long: `Send a request to PATH, relative to the API base URL, using the focused
authorization (or none if the session is empty) and print the JSON response.

Fields given with -f are sent in the query string for GET and as a JSON body
otherwise. Values true, false, null and integers are sent as JSON literals.
A key ending in [] may be repeated to build an array.

If GitHub rejects the token with 401 or 403, the authorization is removed
from the session and the command fails.`,
		Example: `  ghrest api user
  ghrest api user/repos -f per_page=5 -f sort=updated
  ghrest api repos/octocat/hello-world/issues -X POST -f title=Bug -f labels[]=bug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, err := parseMethod(method)
			if err != nil {
				return err
			}
			params, err := parseFields(fields)
			if err != nil {
				return err
			}
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			client, err := a.focusedClient(ctx, true)
			if err != nil {
				return err
			}

			unsubscribe := a.session.Subscribe(func(auth session.Authorization) {
				fmt.Fprintf(a.errOut, "Removed authorization for %s from the session.\n", displayLogin(auth))
			})
			defer unsubscribe()

			resp, err := a.do(ctx, client, args[0],
				github.WithMethod(m),
				github.WithParameters(params),
				github.WithHeaders(hdrs),
			)
			if err != nil {
				return err
			}
			return a.printResponse(resp, include)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&method, "method", "X", "GET", "HTTP method: GET, POST, PUT, PATCH or DELETE")
	flags.StringArrayVarP(&fields, "field", "f", nil, "add a key=value parameter")
	flags.StringArrayVarP(&headers, "header", "H", nil, `add a "Name: value" request header`)
	flags.BoolVarP(&include, "include", "i", false, "print the response status line and headers")
	return cmd
}

func (a *app) printResponse(resp github.Response, include bool) error {
	if include && resp.HasStatus() {
		fmt.Fprintf(a.out, "HTTP %d\n", resp.StatusCode)
		for _, name := range slices.Sorted(maps.Keys(resp.Header)) {
			for _, v := range resp.Header[name] {
				fmt.Fprintf(a.out, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(a.out)
	}

	if resp.StatusCode >= 400 {
		statusErr := fmt.Errorf("request failed with status %d", resp.StatusCode)
		if resp.Value != nil {
			return errors.Join(statusErr, a.printValue(resp.Value))
		}
		if len(resp.Body) > 0 {
			if _, err := fmt.Fprintln(a.out, string(resp.Body)); err != nil {
				return errors.Join(statusErr, fmt.Errorf("writing response: %w", err))
			}
		}
		return statusErr
	}
	if resp.Err != nil {
		return resp.Err
	}
	if resp.Value != nil {
		return a.printValue(resp.Value)
	}
	return nil
}

func (a *app) printValue(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(out))
	return err
}
