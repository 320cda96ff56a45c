// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/andrewkroh/ghrest/internal/github"
)

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the focused authorization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := a.focusedClient(ctx, false)
			if err != nil {
				return err
			}
			resp, err := a.do(ctx, client, "user")
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("GET user returned status %d", resp.StatusCode)
			}

			var user github.User
			if err := github.DecodeValue(resp, &user); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "%s (id %d)", user.Login, user.ID)
			if user.Name != "" {
				fmt.Fprintf(a.out, " %s", user.Name)
			}
			if user.Email != "" {
				fmt.Fprintf(a.out, " <%s>", user.Email)
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}
}
