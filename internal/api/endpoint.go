// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package api

// DefaultEndpoint is default GitHub REST API endpoint.
const DefaultEndpoint = "https://api.github.com/"

// InstallationsPath is path (relative to REST API endpoint) which lists
// installations for the authenticated app.
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#list-installations-for-the-authenticated-app
var InstallationsPath = []string{"app", "installations"}

// MaxPerPage is maximum page size supported by list endpoints.
const MaxPerPage = 100

// AccessTokensPath returns path elements for creating an installation
// access token for installation id.
//
// https://docs.github.com/en/rest/apps/apps?apiVersion=2022-11-28#create-an-installation-access-token-for-an-app
func AccessTokensPath(installationID string) []string {
	return []string{"app", "installations", installationID, "access_tokens"}
}
