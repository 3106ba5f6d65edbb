// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package api_test

import (
	"net/url"
	"testing"

	"github.com/swsphn/github-tools/internal/api"
)

func TestDefaultEndpoint(t *testing.T) {
	_, err := url.Parse(api.DefaultEndpoint)
	if err != nil {
		t.Errorf("DefaultEndpoint URL(%s) is invalid: %s", api.DefaultEndpoint, err)
	}
}

func TestAccessTokensPath(t *testing.T) {
	u, _ := url.Parse(api.DefaultEndpoint)
	got := u.JoinPath(api.AccessTokensPath("42")...).String()
	expect := "https://api.github.com/app/installations/42/access_tokens"
	if got != expect {
		t.Errorf("expected=%s, got=%s", expect, got)
	}

	got = u.JoinPath(api.InstallationsPath...).String()
	expect = "https://api.github.com/app/installations"
	if got != expect {
		t.Errorf("expected=%s, got=%s", expect, got)
	}
}
