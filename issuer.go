// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Issuer issues installation access tokens for a GitHub app.
//
// Every call to [Issuer.Issue] mints a new JWT, discovers app installation,
// and creates a new installation access token. Nothing is cached or retried,
// any error aborts the issuance and no token is returned.
//
// Issuer is safe for concurrent use.
type Issuer struct {
	appID    string
	signer   Signer
	client   *Client
	selector Selector
	clock    Clock
	timeout  time.Duration
	logger   *slog.Logger
}

// NewIssuer returns a new [Issuer] for the app.
//
// App ID can be GitHub app's numeric ID or its client ID. Signer is
// typically [RS256Signer], as GitHub only accepts RS256 JWTs.
//
//   - Use [WithOwner] or [WithInstallationID] if app is installed on more than
//     one account.
//   - Use [WithTimeout] to limit time taken by a single issuance.
func NewIssuer(appID string, signer Signer, opts ...Option) (*Issuer, error) {
	var err error
	appID = strings.TrimSpace(appID)
	if signer == nil {
		err = errors.Join(err, errors.New("no signer provided"))
	}

	if appID == "" {
		err = errors.Join(err, errors.New("app id cannot be empty"))
	}

	if err != nil {
		return nil, fmt.Errorf("githubtools: %w: %w", ErrOptions, err)
	}

	c, err := newConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("githubtools: %w", err)
	}

	return &Issuer{
		appID:  appID,
		signer: signer,
		client: newClient(c),
		selector: Selector{
			Owner:          c.owner,
			InstallationID: c.installID,
		},
		clock:   c.clock,
		timeout: c.timeout,
		logger:  c.logger,
	}, nil
}

// AppID returns the GitHub app id.
func (i *Issuer) AppID() string {
	return i.appID
}

// Endpoint returns REST API endpoint used by the issuer.
func (i *Issuer) Endpoint() string {
	return i.client.Endpoint()
}

// Assertion returns a new signed JWT for the app.
func (i *Issuer) Assertion(ctx context.Context) (SignedAssertion, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	return i.assertion(ctx)
}

// Issue returns a new installation access token, scoped by the request.
func (i *Issuer) Issue(ctx context.Context, req TokenRequest) (InstallationToken, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	assertion, err := i.assertion(ctx)
	if err != nil {
		return InstallationToken{}, err
	}

	installation, err := i.client.ResolveInstallation(ctx, i.appID, assertion, i.selector)
	if err != nil {
		return InstallationToken{}, err
	}

	token, err := i.client.CreateInstallationToken(ctx, installation.ID, assertion, req)
	if err != nil {
		return InstallationToken{}, err
	}

	token.AppID = i.appID
	token.Owner = installation.Owner
	i.logger.InfoContext(ctx, "issued installation access token", slog.Any("token", &token))
	return token, nil
}

// assertion builds claims, encodes them and signs them.
func (i *Issuer) assertion(ctx context.Context) (SignedAssertion, error) {
	claims := NewClaims(i.appID, i.clock.Now())
	err := claims.Validate()
	if err != nil {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): %w", err)
	}

	input, err := BuildSigningInput(i.signer.Header(), claims)
	if err != nil {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): %w", err)
	}

	assertion, err := i.signer.Sign(ctx, input)
	if err != nil {
		return SignedAssertion{}, err
	}

	i.logger.DebugContext(ctx, "signed assertion",
		slog.String("alg", i.signer.Algorithm()),
		slog.Any("jwt", assertion))
	return assertion, nil
}

// withTimeout returns context with configured timeout. Returned context is
// never nil.
func (i *Issuer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if i.timeout > 0 {
		return context.WithTimeout(ctx, i.timeout)
	}
	return context.WithCancel(ctx)
}

// NewInstallationToken returns new installation access token. This takes
// same options as [Issuer].
func NewInstallationToken(ctx context.Context, appID string, signer Signer, req TokenRequest, opts ...Option) (InstallationToken, error) {
	issuer, err := NewIssuer(appID, signer, opts...)
	if err != nil {
		return InstallationToken{}, err
	}
	return issuer.Issue(ctx, req)
}
