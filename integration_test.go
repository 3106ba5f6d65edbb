// SPDX-FileCopyrightText: Copyright 2023 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools_test

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/swsphn/github-tools"
	"github.com/swsphn/github-tools/internal/api"
	"github.com/swsphn/github-tools/internal/shared"
	"github.com/swsphn/github-tools/internal/testkeys"
)

// This tests makes live API calls to default GitHub api endpoint.
func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skipf("Skip => Integration tests")
	}

	// Try to read private key from env variable or file defined in env variable.
	var appKeyEnv string
	if keyFile := os.Getenv("GHT_TEST_APP_PRIVATE_KEY_FILE"); keyFile != "" {
		t.Logf("Reading private key from - %s", keyFile)
		buf, err := os.ReadFile(keyFile)
		if err != nil {
			t.Fatalf("Failed to open private key (%s): %s", keyFile, err)
		}
		appKeyEnv = string(buf)
	} else {
		t.Logf("Reading private key from GHT_TEST_APP_PRIVATE_KEY")
		appKeyEnv = os.Getenv("GHT_TEST_APP_PRIVATE_KEY")
	}

	if appKeyEnv == "" {
		t.Skipf("Skip => GHT_TEST_APP_PRIVATE_KEY is not defined")
	}

	// Verify GHT_TEST_APP_PRIVATE_KEY is PEM encoded and is valid.
	block, _ := pem.Decode([]byte(appKeyEnv))
	if block == nil {
		t.Fatalf("GHT_TEST_APP_PRIVATE_KEY is not PEM encoded")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("GHT_TEST_APP_PRIVATE_KEY is not PKCS1 encoded: %s", err)
	}

	appIDEnv := os.Getenv("GHT_TEST_APP_ID")
	ghOwnerEnv := os.Getenv("GHT_TEST_OWNER")

	if appIDEnv == "" {
		t.Skipf("Skip => GHT_TEST_APP_ID is not defined")
	}

	if ghOwnerEnv == "" {
		t.Skipf("Skip => GHT_TEST_OWNER is not defined")
	}

	// Check if GHT_TEST_API_URL is set.
	baseURLEnv := os.Getenv("GHT_TEST_API_URL")
	if baseURLEnv == "" {
		baseURLEnv = api.DefaultEndpoint
	}

	// Verify endpoint URL is valid.
	baseURL, err := url.Parse(baseURLEnv)
	if err != nil {
		t.Fatalf("Invalid REST API endpoint URL: %s", baseURLEnv)
	}

	// Checks if we can connect to GitHub api endpoint.
	t.Logf("Checking connectivity to REST API endpoint URL: %s", baseURLEnv)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL.String(), nil)
	if err != nil {
		t.Fatalf("Error building request: %s", err)
	}
	req.Header.Add(api.UAHeader, api.UAHeaderValue)

	baseURLResponse, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skipf("Skip => REST API endpoint(%s) is not reachable: %s", baseURLEnv, err)
	}
	defer baseURLResponse.Body.Close()

	switch baseURLResponse.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		t.Skipf("Skip => REST API endpoint(%s) returned server error: %s",
			baseURLEnv, baseURLResponse.Status)
	default:
		t.Fatalf("Invalid response from REST API endpoint(%s): %s",
			baseURLEnv, baseURLResponse.Status)
	}

	remote, err := githubtools.NewCryptoSigner(key)
	if err != nil {
		t.Fatalf("Failed to build crypto signer: %s", err)
	}

	signer, err := githubtools.NewRS256Signer(remote)
	if err != nil {
		t.Fatalf("Failed to build RS256 signer: %s", err)
	}

	t.Run("InvalidAppPrivateKey", func(t *testing.T) {
		ctx, cancel := shared.TestingCtx(t, time.Minute)
		defer cancel()

		otherRemote, err := githubtools.NewCryptoSigner(testkeys.RSA2048())
		if err != nil {
			t.Fatalf("Failed to build crypto signer: %s", err)
		}
		other, err := githubtools.NewRS256Signer(otherRemote)
		if err != nil {
			t.Fatalf("Failed to build RS256 signer: %s", err)
		}

		token, err := githubtools.NewInstallationToken(ctx, appIDEnv, other,
			githubtools.TokenRequest{}, githubtools.WithEndpoint(baseURLEnv))
		if !errors.Is(err, githubtools.ErrUpstream) {
			t.Errorf("expected error=%s, got=%v", githubtools.ErrUpstream, err)
		}

		if token.Token != "" {
			t.Errorf("expected no token on invalid keys")
		}
	})

	t.Run("InvalidOwner", func(t *testing.T) {
		ctx, cancel := shared.TestingCtx(t, time.Minute)
		defer cancel()

		token, err := githubtools.NewInstallationToken(ctx, appIDEnv, signer,
			githubtools.TokenRequest{},
			githubtools.WithEndpoint(baseURLEnv),
			githubtools.WithOwner("swsphn-github-tools-not-installed"),
		)
		if !errors.Is(err, githubtools.ErrNoInstallation) {
			t.Errorf("expected error=%s, got=%v", githubtools.ErrNoInstallation, err)
		}

		if token.Token != "" {
			t.Errorf("expected no token on not installed owner")
		}
	})

	// App has contents:read and issues:read permission
	// limit to contents:read only.
	t.Run("ScopedPermissions", func(t *testing.T) {
		ctx, cancel := shared.TestingCtx(t, time.Minute)
		defer cancel()

		issuer, err := githubtools.NewIssuer(appIDEnv, signer,
			githubtools.WithEndpoint(baseURLEnv),
			githubtools.WithOwner(ghOwnerEnv),
		)
		if err != nil {
			t.Fatalf("Failed to build issuer: %s", err)
		}

		token, err := issuer.Issue(ctx, githubtools.TokenRequest{
			Permissions: map[string]string{"contents": "read"},
		})
		if err != nil {
			t.Fatalf("Failed to issue token: %s", err)
		}

		if !token.IsValid() {
			t.Errorf("token is not valid: %v", &token)
		}

		if !strings.HasPrefix(token.Token, "ghs_") {
			t.Errorf("token does not look like an installation token")
		}

		if token.Permissions["contents"] != "read" {
			t.Errorf("expected contents:read, got permissions=%v", token.Permissions)
		}

		if _, ok := token.Permissions["issues"]; ok {
			t.Errorf("token must not have issues permission: %v", token.Permissions)
		}
	})
}
