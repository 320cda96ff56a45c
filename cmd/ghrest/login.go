// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andrewkroh/ghrest/internal/login"
	"github.com/andrewkroh/ghrest/internal/session"
)

func (a *app) loginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify a personal access token and store it in the session",
		Long: `Verify a personal access token by fetching the authenticated user and store
it as the focused authorization. The token may also be given in the
GHREST_TOKEN environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = os.Getenv("GHREST_TOKEN")
			}
			token = strings.TrimSpace(token)

			v := login.New(a.session, a.transport,
				login.WithClientOptions(a.clientOptions()...),
				login.WithLogger(a.log),
			)
			auth, err := v.Verify(cmd.Context(), token)
			if err != nil {
				if errors.Is(err, login.ErrEmptyToken) {
					return errors.New("a token is required, pass --token or set GHREST_TOKEN")
				}
				return err
			}

			fmt.Fprintf(a.out, "Logged in as %s (id %d)\n", auth.Login, auth.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "personal access token")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the focused authorization from the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var targets []session.Authorization
			if all {
				auths, err := a.session.Authorizations(ctx)
				if err != nil {
					return err
				}
				targets = auths
			} else {
				auth, err := a.session.Focused(ctx)
				if err != nil {
					if errors.Is(err, session.ErrNoAuthorization) {
						fmt.Fprintln(a.out, "Not logged in.")
						return nil
					}
					return err
				}
				targets = []session.Authorization{auth}
			}

			for _, auth := range targets {
				if err := a.session.Remove(ctx, auth); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Logged out %s\n", displayLogin(auth))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every stored authorization")
	return cmd
}
