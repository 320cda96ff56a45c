// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkroh/ghrest/internal/github"
	"github.com/andrewkroh/ghrest/internal/githubtest"
	"github.com/andrewkroh/ghrest/internal/session"
)

type cli struct {
	t           *testing.T
	baseURL     string
	sessionFile string
}

func newCLI(t *testing.T, baseURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")
	t.Setenv("GHREST_TOKEN", "")
	return &cli{t: t, baseURL: baseURL, sessionFile: filepath.Join(dir, "ghrest", "session.json")}
}

func (c *cli) run(args ...string) (stdout, stderr string, err error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{
		"--base-url", c.baseURL,
		"--session-backend", "file",
		"--session-file", c.sessionFile,
		"--log-level", "error",
	}, args...)
	err = execute(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func (c *cli) stored() []session.Authorization {
	c.t.Helper()
	auths, err := session.NewFileStore(c.sessionFile, nil).List(context.Background())
	require.NoError(c.t, err)
	return auths
}

func newFakeGitHub(t *testing.T) *githubtest.Server {
	t.Helper()
	srv := githubtest.NewServer(map[string]githubtest.UserFixture{
		"good-token": {Login: "octocat", ID: 1, Email: "octocat@example.com", Repos: []string{"hello-world"}},
	})
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_LoginWorkflow(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run("login", "--token", "good-token")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as octocat (id 1)")

	stored := c.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "octocat", stored[0].Login)

	out, _, err = c.run("sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "octocat*")
	assert.NotContains(t, out, "good-token")

	out, _, err = c.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "octocat (id 1) <octocat@example.com>\n", out)

	out, _, err = c.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out octocat")
	assert.Empty(t, c.stored())

	_, _, err = c.run("whoami")
	assert.ErrorContains(t, err, "not logged in")
}

func TestCLI_LoginRejected(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	_, _, err := c.run("login", "--token", "bad-token")
	assert.Error(t, err)
	assert.Empty(t, c.stored())
}

func TestCLI_LoginFromEnv(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)
	t.Setenv("GHREST_TOKEN", "good-token")

	out, _, err := c.run("login")
	require.NoError(t, err)
	assert.Contains(t, out, "octocat")
}

func TestCLI_APIGetAndPost(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	_, _, err := c.run("login", "--token", "good-token")
	require.NoError(t, err)

	out, _, err := c.run("api", "user/repos", "-f", "per_page=5")
	require.NoError(t, err)
	var repos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &repos))
	require.Len(t, repos, 1)
	assert.Equal(t, "octocat/hello-world", repos[0]["full_name"])

	out, _, err = c.run("api", "repos/octocat/hello-world/issues", "-X", "POST",
		"-f", "title=Bug", "-f", "labels[]=bug", "-H", "X-GitHub-Api-Version: 2022-11-28")
	require.NoError(t, err)
	var issue map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &issue))
	assert.Equal(t, "Bug", issue["title"])

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "POST", last.Method)
	assert.Equal(t, "2022-11-28", last.Header.Get("X-GitHub-Api-Version"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body, &body))
	assert.Equal(t, "good-token", body["access_token"])
	assert.Equal(t, []any{"bug"}, body["labels"])
}

func TestCLI_APIAnonymous(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run("api", "user/repos")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Query.Get("access_token"))
}

func TestCLI_APIRevokedToken(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	require.NoError(t, session.NewFileStore(c.sessionFile, nil).Put(context.Background(),
		session.Authorization{Token: "revoked-token", Login: "ghost"}))

	_, errOut, err := c.run("api", "user")
	require.ErrorIs(t, err, github.ErrAuthorizationRevoked)
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, errOut, "Removed authorization for ghost")
	assert.Empty(t, c.stored())
}

func TestCLI_APIErrorStatus(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	out, _, err := c.run("api", "user/missing")
	assert.ErrorContains(t, err, "404")
	assert.NotContains(t, out, "access_token")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestPrintResponse_ErrorStatusWriteFailure(t *testing.T) {
	a := &app{out: failingWriter{}}

	tests := []struct {
		name string
		resp github.Response
	}{
		{name: "json", resp: github.Response{StatusCode: 404, Value: map[string]any{"message": "Not Found"}}},
		{name: "raw", resp: github.Response{StatusCode: 502, Body: []byte("bad gateway")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.printResponse(tt.resp, false)
			require.Error(t, err)
			assert.ErrorContains(t, err, fmt.Sprintf("status %d", tt.resp.StatusCode))
			assert.ErrorContains(t, err, "broken pipe")
		})
	}

	err := a.printResponse(github.Response{StatusCode: 404}, false)
	assert.EqualError(t, err, "request failed with status 404")
}

func TestCLI_LogoutAll(t *testing.T) {
	srv := newFakeGitHub(t)
	c := newCLI(t, srv.URL)

	store := session.NewFileStore(c.sessionFile, nil)
	require.NoError(t, store.Put(context.Background(), session.Authorization{Token: "one", Login: "alice"}))
	require.NoError(t, store.Put(context.Background(), session.Authorization{Token: "two", Login: "bob"}))

	out, _, err := c.run("logout", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out alice")
	assert.Contains(t, out, "Logged out bob")
	assert.Empty(t, c.stored())
}

func TestCLI_InvalidConfig(t *testing.T) {
	c := newCLI(t, "not-a-url")

	_, _, err := c.run("sessions")
	assert.ErrorContains(t, err, "api.base_url")
}
