// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package api

// Repository represents a GitHub repository. This is incomplete!
type Repository struct {
	ID       *int64  `json:"id,omitempty"`
	Owner    *User   `json:"owner,omitempty"`
	Name     *string `json:"name,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// User represents a GitHub user or organization. This is incomplete!
type User struct {
	Login *string `json:"login,omitempty"`
	ID    *int64  `json:"id,omitempty"`
	Type  *string `json:"type,omitempty"`
}

// InstallationTokenRequest is payload for installation token request.
//
// Both fields MUST be omitted when empty. An empty list or map is not the
// same as a missing one, missing fields grant everything available to the
// installation.
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#create-an-installation-access-token-for-an-app
type InstallationTokenRequest struct {
	Repositories []string          `json:"repositories,omitempty"`
	Permissions  map[string]string `json:"permissions,omitempty"`
}

// InstallationTokenResponse is returned by API for [InstallationTokenRequest].
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#create-an-installation-access-token-for-an-app
type InstallationTokenResponse struct {
	Token               string            `json:"token,omitempty"`
	Exp                 *Timestamp        `json:"expires_at,omitempty"`
	Permissions         map[string]string `json:"permissions,omitempty"`
	RepositorySelection string            `json:"repository_selection,omitempty"`
	Repositories        []*Repository     `json:"repositories,omitempty"`
}

// Installation represents a GitHub Apps installation.
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#list-installations-for-the-authenticated-app
type Installation struct {
	ID              *int64            `json:"id,omitempty"`
	AppID           *int64            `json:"app_id,omitempty"`
	AppSlug         *string           `json:"app_slug,omitempty"`
	TargetID        *int64            `json:"target_id,omitempty"`
	TargetType      *string           `json:"target_type,omitempty"`
	Account         *User             `json:"account,omitempty"`
	AccessTokensURL *string           `json:"access_tokens_url,omitempty"`
	Permissions     map[string]string `json:"permissions,omitempty"`
	SuspendedAt     *Timestamp        `json:"suspended_at,omitempty"`
}

// ErrorResponse is error body returned by GitHub API.
type ErrorResponse struct {
	Message          string `json:"message,omitempty"` // error message
	DocumentationURL string `json:"documentation_url,omitempty"`
}
