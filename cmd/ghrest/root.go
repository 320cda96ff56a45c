// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/andrewkroh/ghrest/internal/config"
	"github.com/andrewkroh/ghrest/internal/github"
	"github.com/andrewkroh/ghrest/internal/otelsetup"
	"github.com/andrewkroh/ghrest/internal/session"
)

// app holds the state shared by all subcommands. It is populated by
// setup before any subcommand runs.
type app struct {
	out     io.Writer
	errOut  io.Writer
	cfgFile string

	cfg       *config.Config
	log       *slog.Logger
	store     session.Store
	session   *session.Session
	transport *github.HTTPTransport
	closers   []func(context.Context) error
}

// execute runs the ghrest command line with args and releases every
// resource acquired during setup.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return errors.Join(err, a.close(shutdownCtx))
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ghrest",
		Short: "Call the GitHub REST API with stored credentials",
		Long: `ghrest dispatches requests to the GitHub REST API using personal access
tokens kept in a local session. A token that GitHub rejects with 401 or 403
is removed from the session automatically.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./ghrest.yaml or $XDG_CONFIG_HOME/ghrest/ghrest.yaml)")
	pf.String("base-url", "", "GitHub API base URL")
	pf.String("token-key", "", "parameter name the access token is sent under")
	pf.Duration("timeout", 0, "HTTP request timeout")
	pf.String("session-backend", "", "session backend: file, memory or redis")
	pf.String("session-file", "", "path of the session file")
	pf.String("redis-addr", "", "address of the redis session backend")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.sessionsCmd(),
		a.apiCmd(),
	)
	return root
}

// setup loads configuration and builds the logger, telemetry, session and
// transport.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := otelsetup.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.log, err = otelsetup.NewLogger(a.errOut, level, cfg.Logging.Format, cfg.API.TokenKey)
	if err != nil {
		return err
	}
	slog.SetDefault(a.log)

	shutdown, err := otelsetup.Setup(cmd.Context(), "ghrest", version)
	a.closers = append(a.closers, shutdown)
	if err != nil {
		return fmt.Errorf("setting up OpenTelemetry: %w", err)
	}

	store, closeStore, err := newStore(cfg.Session, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeStore)
	a.store = store
	a.session = session.New(store, session.WithLogger(a.log))

	a.transport = github.NewHTTPTransport(
		github.WithTimeout(cfg.API.Timeout),
		github.WithTransportLogger(a.log),
	)

	a.log.Debug("ghrest configured",
		slog.String("base_url", cfg.API.BaseURL),
		slog.String("session_backend", cfg.Session.Backend),
		slog.String("version", version),
	)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newStore builds the session store selected by cfg. The returned function
// releases the store's resources.
func newStore(cfg config.SessionConfig, log *slog.Logger) (session.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(), noop, nil
	case config.BackendFile:
		return session.NewFileStore(cfg.File, log), noop, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeClient := func(context.Context) error { return client.Close() }
		return session.NewRedisStore(client, cfg.Redis.Key), closeClient, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// clientOptions returns the github.Client options derived from the
// configuration.
func (a *app) clientOptions() []github.Option {
	return []github.Option{
		github.WithBaseURL(a.cfg.API.BaseURL),
		github.WithTokenKey(a.cfg.API.TokenKey),
		github.WithUserAgent(a.cfg.API.UserAgent),
		github.WithLogger(a.log),
	}
}

// focusedClient returns a Client authenticated with the focused
// authorization. With no stored authorization and anonymous set, it returns
// an unauthenticated Client.
func (a *app) focusedClient(ctx context.Context, anonymous bool) (*github.Client, error) {
	opts := a.clientOptions()

	auth, err := a.session.Focused(ctx)
	switch {
	case err == nil:
		opts = append(opts, github.WithAuthorization(auth))
	case errors.Is(err, session.ErrNoAuthorization) && anonymous:
	case errors.Is(err, session.ErrNoAuthorization):
		return nil, errors.New(`not logged in, run "ghrest login --token <token>"`)
	default:
		return nil, err
	}
	return github.NewClient(a.session, a.transport, opts...), nil
}

// do dispatches req through client and waits for it to finish. A rejected
// credential is reported as an error naming the removed login.
func (a *app) do(ctx context.Context, client *github.Client, path string, opts ...github.RequestOption) (github.Response, error) {
	var resp github.Response
	call := client.Dispatch(ctx, github.NewRequest(path, func(r github.Response) {
		resp = r
	}, opts...))

	if err := call.Wait(ctx); err != nil {
		call.Cancel()
		if errors.Is(err, github.ErrAuthorizationRevoked) {
			auth, _ := client.Authorization()
			return github.Response{}, fmt.Errorf("GitHub rejected the token for %s and it was removed from the session: %w", displayLogin(auth), err)
		}
		return github.Response{}, err
	}
	return resp, nil
}

func displayLogin(auth session.Authorization) string {
	if auth.Login == "" {
		return "an unknown user"
	}
	return auth.Login
}
