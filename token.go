// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/swsphn/github-tools/internal/api"
)

var (
	_ slog.LogValuer = (*InstallationToken)(nil)
)

// TokenRequest scopes an installation access token.
//
// Empty fields are not sent to the API. Thus, a zero value requests a token
// with access to all repositories and permissions available to the installation,
// not a token with no access.
type TokenRequest struct {
	// Repository names (without owner). Token will only have access to
	// these repositories.
	Repositories []string `json:"repositories,omitempty" yaml:"repositories,omitempty"`

	// Permissions as map of scope to access level, like {"contents": "read"}.
	Permissions map[string]string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// Repository is a repository accessible by an installation access token.
type Repository struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	FullName string `json:"full_name,omitempty" yaml:"fullName,omitempty"`
}

// InstallationToken is an installation access token from GitHub.
type InstallationToken struct {
	// Installation access token. Typically starts with "ghs_".
	Token string `json:"token" yaml:"token"`

	// Token exp time.
	ExpiresAt time.Time `json:"expires_at" yaml:"expiresAt"`

	// Permissions available for the token. If scoped permissions are not
	// requested, token has all permissions available to the installation.
	Permissions map[string]string `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	// RepositorySelection is "all" or "selected".
	RepositorySelection string `json:"repository_selection,omitempty" yaml:"repositorySelection,omitempty"`

	// Repositories which can be accessed with the token. This may be empty
	// if scoped token is not requested. In such cases, token will have access to all
	// repositories accessible by the installation.
	Repositories []Repository `json:"repositories,omitempty" yaml:"repositories,omitempty"`

	// GitHub API endpoint.
	Server string `json:"server,omitempty" yaml:"server,omitempty"`

	// GitHub app ID.
	AppID string `json:"app_id,omitempty" yaml:"appID,omitempty"`

	// Installation owner. This is login of the account on which app is installed.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`

	// Installation ID for the app.
	InstallationID uint64 `json:"installation_id,omitempty" yaml:"installationID,omitempty"`
}

// LogValue implements [log/slog.LogValuer].
func (t *InstallationToken) LogValue() slog.Value {
	repos := make([]string, 0, len(t.Repositories))
	for _, item := range t.Repositories {
		repos = append(repos, item.FullName)
	}
	return slog.GroupValue(
		slog.String("server", t.Server),
		slog.String("app_id", t.AppID),
		slog.Uint64("installation_id", t.InstallationID),
		slog.String("owner", t.Owner),
		slog.Any("repositories", repos),
		slog.String("token", "REDACTED"),
		slog.Time("exp", t.ExpiresAt),
		slog.Any("permissions", t.Permissions),
	)
}

// IsValid checks if [InstallationToken] is valid for at-least 60 seconds.
func (t *InstallationToken) IsValid() bool {
	return t.Token != "" && t.ExpiresAt.After(time.Now().Add(time.Minute))
}

// CreateInstallationToken creates a new installation access token for the
// installation, scoped by the request.
//
// Repositories and permissions are sent as is, and only if non-empty.
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#create-an-installation-access-token-for-an-app
func (c *Client) CreateInstallationToken(ctx context.Context, installationID uint64, assertion SignedAssertion, req TokenRequest) (InstallationToken, error) {
	if installationID == 0 {
		return InstallationToken{}, fmt.Errorf("githubtools(token): %w: installation id is zero", ErrOptions)
	}

	buf, err := json.Marshal(api.InstallationTokenRequest{
		Repositories: req.Repositories,
		Permissions:  req.Permissions,
	})
	if err != nil {
		return InstallationToken{},
			fmt.Errorf("githubtools(token): failed to marshal token request: %w", err)
	}

	u := c.baseURL.JoinPath(api.AccessTokensPath(strconv.FormatUint(installationID, 10))...)
	data, _, err := c.do(ctx, http.MethodPost, u, assertion, buf)
	if err != nil {
		return InstallationToken{},
			fmt.Errorf("githubtools(token): failed to get installation token: %w", err)
	}

	tokenResp := api.InstallationTokenResponse{}
	err = json.Unmarshal(data, &tokenResp)
	if err != nil {
		return InstallationToken{},
			fmt.Errorf("githubtools(token): %w: %w", ErrMalformedResponse, err)
	}

	if tokenResp.Token == "" {
		return InstallationToken{},
			fmt.Errorf("githubtools(token): %w: token is missing", ErrMalformedResponse)
	}

	if tokenResp.Exp == nil || tokenResp.Exp.IsZero() {
		return InstallationToken{},
			fmt.Errorf("githubtools(token): %w: expires_at is missing", ErrMalformedResponse)
	}

	token := InstallationToken{
		Server:              c.Endpoint(),
		InstallationID:      installationID,
		Token:               tokenResp.Token,
		ExpiresAt:           tokenResp.Exp.Time,
		RepositorySelection: tokenResp.RepositorySelection,
	}

	if tokenResp.Repositories != nil {
		token.Repositories = make([]Repository, 0, len(tokenResp.Repositories))
		for _, item := range tokenResp.Repositories {
			if item == nil {
				continue
			}
			repo := Repository{}
			if item.ID != nil {
				repo.ID = *item.ID
			}
			if item.Name != nil {
				repo.Name = *item.Name
			}
			if item.FullName != nil {
				repo.FullName = *item.FullName
			}
			token.Repositories = append(token.Repositories, repo)
		}
	}

	if tokenResp.Permissions != nil {
		token.Permissions = maps.Clone(tokenResp.Permissions)
	}

	c.logger.DebugContext(ctx, "created installation token",
		slog.Uint64("installation_id", installationID),
		slog.Any("permissions", slices.Sorted(maps.Keys(token.Permissions))),
		slog.Time("exp", token.ExpiresAt))

	return token, nil
}
