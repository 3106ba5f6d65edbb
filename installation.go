// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/swsphn/github-tools/internal/api"
)

// Selector narrows down installations when app is installed on
// more than one account. Zero value selects the only installation.
type Selector struct {
	// Owner is login of the account on which app is installed.
	Owner string

	// InstallationID is installation id.
	InstallationID uint64
}

// IsZero returns true if selector does not filter installations.
func (s Selector) IsZero() bool {
	return s.Owner == "" && s.InstallationID == 0
}

func (s Selector) match(installation *api.Installation) bool {
	if s.InstallationID != 0 && uint64(*installation.ID) != s.InstallationID {
		return false
	}

	if s.Owner != "" {
		if installation.Account == nil || installation.Account.Login == nil {
			return false
		}
		return strings.EqualFold(*installation.Account.Login, s.Owner)
	}
	return true
}

// maxInstallationPages is maximum number of installation pages fetched.
const maxInstallationPages = 100

// Installation is an app installation resolved by [Client.ResolveInstallation].
type Installation struct {
	// ID is installation id.
	ID uint64

	// Owner is login of the account on which app is installed.
	Owner string
}

// ResolveInstallation returns installation of the app authenticated by
// the assertion. App must have exactly one installation matching the selector.
// All pages of installations are searched.
//
//   - [ErrNoInstallation] is returned if app has no installations or none
//     of them match the selector.
//   - [ErrAmbiguousInstallation] is returned if more than one installation
//     matches the selector.
//   - [ErrInstallationSuspended] is returned if matching installation is suspended.
//   - [UpstreamError] is returned if API returns an error.
//   - [ErrMalformedResponse] is returned if API response is not valid.
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#list-installations-for-the-authenticated-app
func (c *Client) ResolveInstallation(ctx context.Context, appID string, assertion SignedAssertion, selector Selector) (Installation, error) {
	u := c.baseURL.JoinPath(api.InstallationsPath...)
	q := u.Query()
	q.Set("per_page", strconv.Itoa(api.MaxPerPage))
	u.RawQuery = q.Encode()

	var total int
	candidates := make([]*api.Installation, 0, 1)
	for page := 1; u != nil; page++ {
		if page > maxInstallationPages {
			return Installation{}, fmt.Errorf("githubtools(installation): %w: more than %d pages of installations",
				ErrMalformedResponse, maxInstallationPages)
		}

		data, header, err := c.do(ctx, http.MethodGet, u, assertion, nil)
		if err != nil {
			return Installation{}, fmt.Errorf("githubtools(installation): failed to list installations: %w", err)
		}

		var installations []*api.Installation
		err = json.Unmarshal(data, &installations)
		if err != nil {
			return Installation{}, fmt.Errorf("githubtools(installation): %w: %w", ErrMalformedResponse, err)
		}

		for i, item := range installations {
			if item == nil || item.ID == nil || *item.ID <= 0 {
				return Installation{}, fmt.Errorf("githubtools(installation): %w: installation[%d] has no id",
					ErrMalformedResponse, total+i)
			}

			if selector.match(item) {
				candidates = append(candidates, item)
			}
		}
		total += len(installations)

		u, err = c.nextPage(header)
		if err != nil {
			return Installation{}, fmt.Errorf("githubtools(installation): %w: %w", ErrMalformedResponse, err)
		}
	}

	switch {
	case total == 0:
		return Installation{}, fmt.Errorf("githubtools(installation): %w: app %s is not installed", ErrNoInstallation, appID)
	case len(candidates) == 0:
		return Installation{}, fmt.Errorf("githubtools(installation): %w: none of %d installations of app %s match owner=%q installation_id=%d",
			ErrNoInstallation, total, appID, selector.Owner, selector.InstallationID)
	case len(candidates) > 1 && selector.IsZero():
		return Installation{}, fmt.Errorf("githubtools(installation): %w: app %s has %d installations, specify owner or installation id",
			ErrAmbiguousInstallation, appID, len(candidates))
	case len(candidates) > 1:
		return Installation{}, fmt.Errorf("githubtools(installation): %w: %d installations of app %s match owner=%q installation_id=%d",
			ErrAmbiguousInstallation, len(candidates), appID, selector.Owner, selector.InstallationID)
	}

	installation := Installation{ID: uint64(*candidates[0].ID)}
	if candidates[0].Account != nil && candidates[0].Account.Login != nil {
		installation.Owner = *candidates[0].Account.Login
	}

	// Check if installation is suspended.
	if suspended := candidates[0].SuspendedAt; suspended != nil && !suspended.IsZero() {
		if suspended.Time.Before(c.clock.Now()) {
			return Installation{}, fmt.Errorf("githubtools(installation): %w: installation id %d",
				ErrInstallationSuspended, installation.ID)
		}
	}

	c.logger.DebugContext(ctx, "resolved installation",
		slog.String("app_id", appID),
		slog.Uint64("installation_id", installation.ID),
		slog.String("owner", installation.Owner),
		slog.Int("installations", total))

	return installation, nil
}
