// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"

	"github.com/swsphn/github-tools/internal/api"
)

var (
	_ Signer       = (*HS256Signer)(nil)
	_ Signer       = (*RS256Signer)(nil)
	_ RemoteSigner = (*CryptoSigner)(nil)
)

// Signer signs JWT signing input and returns signed JWT.
//
// Only [HS256Signer] and [RS256Signer] implement this interface.
type Signer interface {
	// Algorithm returns JWT algorithm, i.e "alg" header value.
	Algorithm() string

	// Header returns fixed JWT header used by the signer.
	Header() Header

	// Sign signs the input and returns signed JWT.
	Sign(ctx context.Context, input SigningInput) (SignedAssertion, error)

	sealed()
}

// RemoteSigner signs SHA-256 digests with an RSA private key, using
// RSASSA-PKCS1-v1_5. Typically key is held by a key custody service
// and is never exposed to the caller.
type RemoteSigner interface {
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// HS256Signer signs JWT with HMAC-SHA256 using a shared secret.
//
// GitHub apps only accept RS256 JWTs. This is only useful for services
// which accept shared secret JWTs and for testing.
type HS256Signer struct {
	secret []byte
}

// NewHS256Signer returns new [HS256Signer]. Secret is copied.
func NewHS256Signer(secret []byte) (*HS256Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret is empty", ErrOptions)
	}
	return &HS256Signer{secret: bytes.Clone(secret)}, nil
}

func (*HS256Signer) sealed() {}

// Algorithm returns "HS256".
func (*HS256Signer) Algorithm() string {
	return api.AlgHS256
}

// Header returns [HeaderHS256].
func (*HS256Signer) Header() Header {
	return HeaderHS256
}

// Sign signs the input with HMAC-SHA256.
func (s *HS256Signer) Sign(_ context.Context, input SigningInput) (SignedAssertion, error) {
	if !bytes.Equal(input.Header, []byte(HeaderHS256)) {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): header is not %s", api.AlgHS256)
	}

	signature, err := jwt.SigningMethodHS256.Sign(input.String(), s.secret)
	if err != nil {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): failed to sign JWT: %w", err)
	}
	return newSignedAssertion(input, signature)
}

// RS256Signer signs JWT with RSASSA-PKCS1-v1_5 using SHA-256.
//
// Digest is computed locally, but signing operation is delegated to
// [RemoteSigner]. This allows keeping private key in a key custody
// service like Azure Key Vault.
type RS256Signer struct {
	remote RemoteSigner
}

// NewRS256Signer returns new [RS256Signer] backed by remote signer.
func NewRS256Signer(remote RemoteSigner) (*RS256Signer, error) {
	if remote == nil {
		return nil, fmt.Errorf("%w: no remote signer provided", ErrOptions)
	}
	return &RS256Signer{remote: remote}, nil
}

func (*RS256Signer) sealed() {}

// Algorithm returns "RS256".
func (*RS256Signer) Algorithm() string {
	return api.AlgRS256
}

// Header returns [HeaderRS256].
func (*RS256Signer) Header() Header {
	return HeaderRS256
}

// Sign computes SHA-256 digest of the input and signs it with the remote signer.
// Errors returned by remote signer are wrapped with [ErrSigningUnavailable].
func (s *RS256Signer) Sign(ctx context.Context, input SigningInput) (SignedAssertion, error) {
	if !bytes.Equal(input.Header, []byte(HeaderRS256)) {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): header is not %s", api.AlgRS256)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	digest := sha256.Sum256([]byte(input.String()))
	signature, err := s.remote.SignDigest(ctx, digest[:])
	if err != nil {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): %w: %w", ErrSigningUnavailable, err)
	}

	if len(signature) == 0 {
		return SignedAssertion{}, fmt.Errorf("githubtools(jwt): %w: empty signature", ErrSigningUnavailable)
	}

	return newSignedAssertion(input, signature)
}

// contextSigner is similar to [crypto.Signer] but is context-aware.
type contextSigner interface {
	SignContext(ctx context.Context, rand io.Reader, digest []byte, opt crypto.SignerOpts) ([]byte, error)
}

// CryptoSigner adapts a [crypto.Signer] to [RemoteSigner].
//
// If signer implements SignContext(ctx, rand, digest, opts) like KMS backed signers
// from github.com/tprasadtp/cryptokms, it is used instead of Sign.
type CryptoSigner struct {
	internal crypto.Signer
}

// NewCryptoSigner returns a [RemoteSigner] backed by a [crypto.Signer].
//
//   - RSA keys of length less than 2048 bits are not supported.
//   - Only RSA keys are supported. Using ECDSA, ED25519 or other keys will return error.
func NewCryptoSigner(signer crypto.Signer) (*CryptoSigner, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer provided", ErrOptions)
	}

	switch v := signer.Public().(type) {
	case *rsa.PublicKey:
		if v.N.BitLen() < 2048 {
			return nil, fmt.Errorf("%w: rsa keys size(%d) < 2048 bits", ErrOptions, v.N.BitLen())
		}
	case *ecdsa.PublicKey:
		return nil, fmt.Errorf("%w: ECDSA keys are not supported", ErrOptions)
	case *ed25519.PublicKey, ed25519.PublicKey:
		return nil, fmt.Errorf("%w: ED-25519 keys are not supported", ErrOptions)
	default:
		return nil, fmt.Errorf("%w: unknown key type: %T", ErrOptions, v)
	}
	return &CryptoSigner{internal: signer}, nil
}

// Public returns public key of the signer.
func (s *CryptoSigner) Public() crypto.PublicKey {
	return s.internal.Public()
}

// SignDigest signs SHA-256 digest with the signer.
func (s *CryptoSigner) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("invalid SHA-256 digest size: %d", len(digest))
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if cs, ok := s.internal.(contextSigner); ok {
		return cs.SignContext(ctx, rand.Reader, digest, crypto.SHA256) //nolint:wrapcheck // wrapped by caller.
	}

	// Signer is not context aware, bail out early if context is already done.
	if err := context.Cause(ctx); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller.
	}

	signature, err := s.internal.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		return nil, errors.Join(errors.New("signer returned an error"), err)
	}
	return signature, nil
}
