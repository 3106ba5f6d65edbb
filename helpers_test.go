// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// refTime is 2024-01-01T00:00:00Z.
var refTime = time.Unix(1704067200, 0).UTC()

// fixedClock is a [Clock] which always returns same time.
type fixedClock time.Time

func (c fixedClock) Now() time.Time {
	return time.Time(c)
}

// apiRequest is a request recorded by [apiServer].
type apiRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// apiResponse is a canned response served by [apiServer].
type apiResponse struct {
	Status int
	Body   []byte
}

// apiServer is a fake REST API which serves canned responses keyed
// by "METHOD /path" and records all requests.
type apiServer struct {
	*httptest.Server
	mu        sync.Mutex
	responses map[string]apiResponse
	requests  []apiRequest
}

func newAPIServer(t *testing.T, responses map[string]apiResponse) *apiServer {
	t.Helper()
	s := &apiServer{responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, apiRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		resp, ok := s.responses[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Requests returns all recorded requests.
func (s *apiServer) Requests() []apiRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apiRequest(nil), s.requests...)
}

// Count returns number of requests made for "METHOD /path".
func (s *apiServer) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.requests {
		if item.Method+" "+item.Path == key {
			n++
		}
	}
	return n
}

const (
	listInstallationsKey = "GET /app/installations"
	createTokenKey       = "POST /app/installations/42/access_tokens"
)
