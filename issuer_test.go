// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/swsphn/github-tools/internal"
	"github.com/swsphn/github-tools/internal/api"
	"github.com/swsphn/github-tools/internal/testdata/apitestdata"
	"github.com/swsphn/github-tools/internal/testkeys"
)

func TestNewIssuer(t *testing.T) {
	signer, _ := NewHS256Signer([]byte("s3cr3t"))

	type testCase struct {
		name   string
		appID  string
		signer Signer
		opts   []Option
		ok     bool
	}
	tt := []testCase{
		{name: "valid", appID: "12345", signer: signer, ok: true},
		{name: "client-id", appID: " Iv1.d1a6dd3a2f5b3bf4 ", signer: signer, ok: true},
		{name: "no-app-id", appID: " ", signer: signer},
		{name: "no-signer", appID: "12345"},
		{name: "invalid-option", appID: "12345", signer: signer, opts: []Option{WithEndpoint("ftp://x")}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			issuer, err := NewIssuer(tc.appID, tc.signer, tc.opts...)
			if !tc.ok {
				if !errors.Is(err, ErrOptions) {
					t.Errorf("expected error=%s, got=%v", ErrOptions, err)
				}
				if issuer != nil {
					t.Errorf("expected nil issuer on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %s", err)
			}
			if issuer.AppID() != strings.TrimSpace(tc.appID) {
				t.Errorf("expected app id=%s, got=%s", strings.TrimSpace(tc.appID), issuer.AppID())
			}
		})
	}
}

func TestIssuer_Issue(t *testing.T) {
	data := apitestdata.Get(t)
	signer, _ := NewHS256Signer([]byte("s3cr3t"))

	t.Run("reference", func(t *testing.T) {
		srv := newAPIServer(t, map[string]apiResponse{
			listInstallationsKey: {Status: http.StatusOK, Body: data["installations"]},
			createTokenKey:       {Status: http.StatusCreated, Body: data["access-token"]},
		})

		var logs strings.Builder
		token, err := NewInstallationToken(context.Background(), apitestdata.AppID, signer,
			TokenRequest{},
			WithEndpoint(srv.URL),
			WithClock(fixedClock(refTime)),
			WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		)
		if err != nil {
			t.Fatalf("expected no error, got %s", err)
		}

		if token.Token != "ghs_x" {
			t.Errorf("expected token=ghs_x, got=%s", token.Token)
		}

		if !token.ExpiresAt.Equal(time.Date(2024, time.January, 1, 0, 10, 0, 0, time.UTC)) {
			t.Errorf("unexpected expires_at: %s", token.ExpiresAt)
		}

		if token.AppID != apitestdata.AppID || token.InstallationID != apitestdata.InstallationID {
			t.Errorf("unexpected app id=%s, installation id=%d", token.AppID, token.InstallationID)
		}

		if token.Owner != apitestdata.InstallationOwner {
			t.Errorf("expected owner=%s, got=%s", apitestdata.InstallationOwner, token.Owner)
		}

		reqs := srv.Requests()
		if len(reqs) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(reqs))
		}

		if reqs[0].Method+" "+reqs[0].Path != listInstallationsKey {
			t.Errorf("expected first request to be %s, got %s %s", listInstallationsKey, reqs[0].Method, reqs[0].Path)
		}

		if reqs[1].Method+" "+reqs[1].Path != createTokenKey {
			t.Errorf("expected second request to be %s, got %s %s", createTokenKey, reqs[1].Method, reqs[1].Path)
		}

		// Same assertion is used for both requests.
		expect := "Bearer " + refSigningInput + "." + refHS256Signature
		for _, req := range reqs {
			if v := req.Header.Get(api.AuthzHeader); v != expect {
				t.Errorf("%s %s: expected Authorization=%s, got=%s", req.Method, req.Path, expect, v)
			}
		}

		if string(reqs[1].Body) != "{}" {
			t.Errorf("expected empty token request, got=%s", reqs[1].Body)
		}

		for _, secret := range []string{"ghs_x", refHS256Signature, "s3cr3t"} {
			if strings.Contains(logs.String(), secret) {
				t.Errorf("logs must not contain secrets: %s", logs.String())
			}
		}
	})

	t.Run("owner", func(t *testing.T) {
		srv := newAPIServer(t, map[string]apiResponse{
			listInstallationsKey: {Status: http.StatusOK, Body: data["installations-multiple"]},
			"POST /app/installations/43/access_tokens": {
				Status: http.StatusCreated, Body: data["access-token"],
			},
		})

		issuer, err := NewIssuer(apitestdata.AppID, signer,
			WithEndpoint(srv.URL),
			WithOwner(apitestdata.OtherInstallationOwner))
		if err != nil {
			t.Fatalf("failed to build issuer: %s", err)
		}

		token, err := issuer.Issue(context.Background(), TokenRequest{
			Repositories: []string{"repo"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %s", err)
		}

		if token.InstallationID != apitestdata.OtherInstallationID {
			t.Errorf("expected installation id=%d, got=%d", apitestdata.OtherInstallationID, token.InstallationID)
		}

		if token.Owner != apitestdata.OtherInstallationOwner {
			t.Errorf("expected owner=%s, got=%s", apitestdata.OtherInstallationOwner, token.Owner)
		}
	})

	t.Run("resolve-error", func(t *testing.T) {
		tt := []struct {
			name string
			body []byte
			err  error
		}{
			{"empty", data["installations-empty"], ErrNoInstallation},
			{"multiple", data["installations-multiple"], ErrAmbiguousInstallation},
			{"malformed", []byte(`[{}]`), ErrMalformedResponse},
		}
		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				srv := newAPIServer(t, map[string]apiResponse{
					listInstallationsKey: {Status: http.StatusOK, Body: tc.body},
					createTokenKey:       {Status: http.StatusCreated, Body: data["access-token"]},
				})

				token, err := NewInstallationToken(context.Background(), apitestdata.AppID, signer,
					TokenRequest{}, WithEndpoint(srv.URL))
				if !errors.Is(err, tc.err) {
					t.Errorf("expected error=%s, got=%v", tc.err, err)
				}
				if token.Token != "" {
					t.Errorf("expected no token on error")
				}
				if n := srv.Count(createTokenKey); n != 0 {
					t.Errorf("token must not be requested when installation is not resolved")
				}
			})
		}
	})

	t.Run("signer-error", func(t *testing.T) {
		srv := newAPIServer(t, map[string]apiResponse{
			listInstallationsKey: {Status: http.StatusOK, Body: data["installations"]},
			createTokenKey:       {Status: http.StatusCreated, Body: data["access-token"]},
		})

		remote, _ := NewCryptoSigner(&errSigner{public: testkeys.RSA2048().Public()})
		rs256, _ := NewRS256Signer(remote)
		_, err := NewInstallationToken(context.Background(), apitestdata.AppID, rs256,
			TokenRequest{}, WithEndpoint(srv.URL))
		if !errors.Is(err, ErrSigningUnavailable) {
			t.Errorf("expected error=%s, got=%v", ErrSigningUnavailable, err)
		}
		if n := len(srv.Requests()); n != 0 {
			t.Errorf("expected no API requests when signing fails, got %d", n)
		}
	})

	t.Run("exchange-error", func(t *testing.T) {
		srv := newAPIServer(t, map[string]apiResponse{
			listInstallationsKey: {Status: http.StatusOK, Body: data["installations"]},
			createTokenKey:       {Status: http.StatusUnprocessableEntity, Body: data["error-unprocessable"]},
		})

		_, err := NewInstallationToken(context.Background(), apitestdata.AppID, signer,
			TokenRequest{Repositories: []string{"does-not-exist"}}, WithEndpoint(srv.URL))

		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("expected UpstreamError, got=%v", err)
		}
		if upstream.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected status=422, got=%d", upstream.StatusCode)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		rt := internal.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			<-r.Context().Done()
			return nil, r.Context().Err()
		})

		_, err := NewInstallationToken(context.Background(), apitestdata.AppID, signer,
			TokenRequest{}, WithRoundTripper(rt), WithTimeout(10*time.Millisecond))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected error=%s, got=%v", context.DeadlineExceeded, err)
		}
	})
}

func TestIssuer_Assertion(t *testing.T) {
	signer, _ := NewHS256Signer([]byte("s3cr3t"))
	issuer, err := NewIssuer(apitestdata.AppID, signer, WithClock(fixedClock(refTime)))
	if err != nil {
		t.Fatalf("failed to build issuer: %s", err)
	}

	assertion, err := issuer.Assertion(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %s", err)
	}

	if expect := refSigningInput + "." + refHS256Signature; assertion.Token != expect {
		t.Errorf("expected token=%s, got=%s", expect, assertion.Token)
	}
}
