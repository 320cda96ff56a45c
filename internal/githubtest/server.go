// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package githubtest provides a fake GitHub REST API for tests. Tokens are
// accepted either as an access_token parameter (query string or JSON body)
// or as a Bearer Authorization header.
package githubtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// UserFixture holds the test data for a single fake user.
type UserFixture struct {
	Login string
	ID    int64
	Email string
	Repos []string
}

// RecordedRequest is a request received by the Server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is a fake GitHub API backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]UserFixture
	requests []RecordedRequest
}

// NewServer starts a Server that knows the users keyed by token. Call Close
// when done.
func NewServer(users map[string]UserFixture) *Server {
	s := &Server{users: users}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", s.handleGetUser)
	mux.HandleFunc("GET /user/repos", s.handleListRepos)
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues", s.handleCreateIssue)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}", s.handleDeleteRepo)

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// Requests returns the requests received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// extractToken finds the access token on r. Returns the token and true if
// present, or empty string and false otherwise.
func extractToken(r *http.Request) (string, bool) {
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			return token, true
		}
	}
	if r.Body != nil && r.Method != http.MethodGet {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		var params map[string]any
		if json.Unmarshal(body, &params) == nil {
			if token, ok := params["access_token"].(string); ok && token != "" {
				return token, true
			}
		}
	}
	return "", false
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (UserFixture, bool) {
	token, ok := extractToken(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Requires authentication"}`)
		return UserFixture{}, false
	}
	fixture, exists := s.users[token]
	if !exists {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
		return UserFixture{}, false
	}
	return fixture, true
}

// handleGetUser implements GET /user.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	fixture, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"login": fixture.Login,
		"id":    fixture.ID,
		"email": fixture.Email,
	})
}

// handleListRepos implements GET /user/repos. Without a token it lists
// nothing, matching an anonymous caller.
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos := []map[string]any{}
	if token, ok := extractToken(r); ok {
		fixture, exists := s.users[token]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		for _, name := range fixture.Repos {
			repos = append(repos, map[string]any{
				"name":      name,
				"full_name": fixture.Login + "/" + name,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(repos)
}

// handleCreateIssue implements POST /repos/{owner}/{repo}/issues. The
// created issue echoes the title and body parameters.
func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	fixture, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if r.PathValue("owner") != fixture.Login {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Resource not accessible by personal access token"}`)
		return
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Problems parsing JSON"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"number": 1,
		"title":  params["title"],
		"body":   params["body"],
		"user":   map[string]any{"login": fixture.Login},
	})
}

// handleDeleteRepo implements DELETE /repos/{owner}/{repo}.
func (s *Server) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	fixture, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if r.PathValue("owner") != fixture.Login {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Must have admin rights to Repository."}`)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
