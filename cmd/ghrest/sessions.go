// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrewkroh/ghrest/internal/session"
)

func (a *app) sessionsCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored authorizations",
		Long: `List stored authorizations, oldest first. The last one listed is the focused
authorization. With --watch the list is printed again whenever the session
file changes, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			auths, err := a.session.Authorizations(ctx)
			if err != nil {
				return err
			}
			if err := printSessions(a.out, auths); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fs, ok := a.store.(*session.FileStore)
			if !ok {
				return errors.New("--watch requires the file session backend")
			}
			return fs.Watch(ctx, func(auths []session.Authorization) {
				fmt.Fprintln(a.out)
				if err := printSessions(a.out, auths); err != nil {
					a.log.Warn("failed to print sessions", slog.String("error", err.Error()))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "print the list again whenever the session file changes")
	return cmd
}

func printSessions(w io.Writer, auths []session.Authorization) error {
	if len(auths) == 0 {
		_, err := fmt.Fprintln(w, "No stored authorizations.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tUSER ID\tTOKEN\tADDED\t")
	for i, auth := range auths {
		focused := ""
		if i == len(auths)-1 {
			focused = "*"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%s\t%s\t\n",
			displayLogin(auth), focused, auth.UserID, maskToken(auth.Token), auth.CreatedAt.Local().Format(time.RFC3339))
	}
	return tw.Flush()
}

// maskToken keeps only enough of token to tell stored tokens apart.
func maskToken(token string) string {
	const visible = 4
	if len(token) <= visible*2 {
		return "****"
	}
	return token[:visible] + "****" + token[len(token)-visible:]
}
