// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"fmt"
	"net/http"
)

var (
	_ error = Error("")
	_ error = (*UpstreamError)(nil)
)

// Error is immutable error representation.
//
// Error strings themselves are NOT part of semver compatibility guarantees.
// Use exported symbols instead of directly using error strings.
type Error string

// Implements Error() interface.
func (e Error) Error() string {
	return string(e)
}

// Errors returned by [Issuer] and [Client]. Use [errors.Is] to check for them,
// as they are always wrapped with additional context.
//
//   - [ErrSigningUnavailable] is returned when key custody service cannot sign
//     the assertion. It is unreachable, caller is unauthorized or key is missing
//     or disabled.
//   - [ErrNoInstallation] is returned when app has no installations, or none
//     of them match the configured owner or installation id.
//   - [ErrAmbiguousInstallation] is returned when app has more than one
//     installation and none of the options narrow it down to one.
//   - [ErrInstallationSuspended] is returned when the installation is suspended.
//   - [ErrMalformedResponse] is returned when API response is missing
//     expected fields or is not valid JSON.
//   - [ErrUpstream] matches all [UpstreamError] values.
//   - [ErrInvalidClaims] is returned when JWT claims are incomplete or
//     exceed the lifetime allowed by GitHub.
//   - [ErrOptions] is returned when options are invalid.
const (
	ErrSigningUnavailable    = Error("githubtools: signing service unavailable")
	ErrNoInstallation        = Error("githubtools: no installation found")
	ErrAmbiguousInstallation = Error("githubtools: multiple installations found")
	ErrInstallationSuspended = Error("githubtools: installation is suspended")
	ErrMalformedResponse     = Error("githubtools: malformed API response")
	ErrUpstream              = Error("githubtools: API request failed")
	ErrInvalidClaims         = Error("githubtools: invalid JWT claims")
	ErrOptions               = Error("githubtools: invalid options")
)

// UpstreamError is returned when GitHub API responds with a non-success status.
// Body is the raw response body as returned by the API, which never contains
// the credentials used to make the request.
type UpstreamError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Status is the HTTP response status like "401 Unauthorized".
	Status string

	// Message is error message from API error response, if available.
	Message string

	// Body is raw response body.
	Body []byte
}

func (e *UpstreamError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		return fmt.Sprintf("githubtools: %s(%s)", e.Message, status)
	}
	return fmt.Sprintf("githubtools: API request failed(%s)", status)
}

// Is allows matching any [UpstreamError] with [ErrUpstream].
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
