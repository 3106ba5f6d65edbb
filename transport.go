// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/swsphn/github-tools/internal/api"
)

var (
	_ http.RoundTripper = (*assertionTransport)(nil)
)

// assertionTransport is a [http.RoundTripper] which authenticates requests
// as the app, using a signed assertion (JWT).
//
// 'Authorization', 'Accept' and 'X-GitHub-Api-Version' headers are always
// overridden. 'User-Agent' header is only populated if missing.
type assertionTransport struct {
	assertion SignedAssertion   // signed assertion
	host      string            // REST API host
	ua        string            // fallback user agent
	next      http.RoundTripper // next round tripper
}

func (t *assertionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("githubtools(RoundTrip): request is nil")
	}

	// Assertion must never be sent to any other host.
	if !strings.EqualFold(t.host, req.URL.Host) {
		return nil,
			fmt.Errorf("githubtools(RoundTrip): Host for round tripper(%s) does not match host for request(%s)",
				t.host, req.URL.Host)
	}

	if t.assertion.Token == "" {
		return nil, errors.New("githubtools(RoundTrip): assertion is empty")
	}

	clone := cloneRequest(req) // RoundTripper should not modify request
	clone.Header.Set(api.AcceptHeader, api.AcceptHeaderValue)
	clone.Header.Set(api.VersionHeader, api.VersionHeaderValue)
	clone.Header.Set(api.AuthzHeader, api.AuthzHeaderValue(t.assertion.Token))

	// Use fallback User Agent header if it is missing.
	if clone.Header.Get(api.UAHeader) == "" {
		clone.Header.Set(api.UAHeader, t.ua)
	}

	//nolint:wrapcheck // don't wrap errors returned by underlying round-tripper.
	return t.next.RoundTrip(clone)
}

// cloneRequest returns a clone of the provided *http.Request.
// The clone is a shallow copy of the struct and its shallow copy of
// Header map.
func cloneRequest(r *http.Request) *http.Request {
	// shallow copy of the struct
	clone := new(http.Request)
	*clone = *r

	// shallow copy of the Headers.
	clone.Header = maps.Clone(r.Header)
	if clone.Header == nil {
		clone.Header = make(http.Header)
	}
	return clone
}
