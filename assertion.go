// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package githubtools

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/swsphn/github-tools/internal/api"
)

var (
	_ slog.LogValuer = (*SignedAssertion)(nil)
)

const (
	// MaxAssertionLifetime is maximum lifetime of an app JWT allowed by GitHub.
	MaxAssertionLifetime = 10 * time.Minute

	// ClockDriftAllowance is how far in the past JWT iat is set, to
	// allow for clock drift between local machine and GitHub.
	ClockDriftAllowance = time.Minute
)

// Header is a fixed JOSE header for a signing algorithm.
type Header string

// JWT headers supported by signers.
const (
	HeaderHS256 = Header(api.RawJWTHeaderHS256)
	HeaderRS256 = Header(api.RawJWTHeaderRS256)
)

// Claims are JWT claims as required by GitHub app.
type Claims struct {
	// Issued at time as unix epoch seconds.
	IssuedAt int64

	// Expiry time as unix epoch seconds.
	Exp int64

	// Issuer. This is GitHub app ID or Client ID.
	Issuer string
}

// NewClaims returns claims for issuer, valid for [MaxAssertionLifetime]
// starting [ClockDriftAllowance] before now.
//
// GitHub rejects timestamps that are not an integer, thus now is truncated
// to seconds.
func NewClaims(iss string, now time.Time) Claims {
	iat := now.Truncate(time.Second).Add(-ClockDriftAllowance)
	return Claims{
		IssuedAt: iat.Unix(),
		Exp:      iat.Add(MaxAssertionLifetime).Unix(),
		Issuer:   iss,
	}
}

// Validate checks that all claims are present and lifetime is within the
// limits allowed by GitHub.
func (c Claims) Validate() error {
	var err error
	if c.Issuer == "" {
		err = errors.Join(err, errors.New("iss is missing"))
	}
	if c.IssuedAt == 0 {
		err = errors.Join(err, errors.New("iat is missing"))
	}
	if c.Exp == 0 {
		err = errors.Join(err, errors.New("exp is missing"))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidClaims, err)
	}

	if c.Exp <= c.IssuedAt {
		return fmt.Errorf("%w: exp(%d) must be after iat(%d)", ErrInvalidClaims, c.Exp, c.IssuedAt)
	}

	if lifetime := time.Duration(c.Exp-c.IssuedAt) * time.Second; lifetime > MaxAssertionLifetime {
		return fmt.Errorf("%w: lifetime %s exceeds %s", ErrInvalidClaims, lifetime, MaxAssertionLifetime)
	}
	return nil
}

// SigningInput is JWT header and payload, which are encoded and signed.
type SigningInput struct {
	Header  []byte
	Payload []byte
}

// String returns base64url encoded header and payload joined by '.'.
// This is the exact byte sequence which is signed.
func (s SigningInput) String() string {
	enc := base64.RawURLEncoding
	buf := make([]byte, 0, enc.EncodedLen(len(s.Header))+enc.EncodedLen(len(s.Payload))+1)
	buf = enc.AppendEncode(buf, s.Header)
	buf = append(buf, '.')
	buf = enc.AppendEncode(buf, s.Payload)
	return string(buf)
}

// BuildSigningInput pairs the header with JSON encoded claims. It only checks
// that all claims are present, lifetime is checked by [Claims.Validate].
func BuildSigningInput(header Header, claims Claims) (SigningInput, error) {
	if header == "" {
		return SigningInput{}, fmt.Errorf("%w: header is empty", ErrInvalidClaims)
	}

	if claims.Issuer == "" || claims.IssuedAt == 0 || claims.Exp == 0 {
		return SigningInput{}, fmt.Errorf("%w: iss, iat and exp are required", ErrInvalidClaims)
	}

	payload, err := json.Marshal(&api.JWTPayload{
		IssuedAt: claims.IssuedAt,
		Exp:      claims.Exp,
		Issuer:   claims.Issuer,
	})
	if err != nil {
		return SigningInput{}, fmt.Errorf("githubtools(jwt): failed to encode JWT payload: %w", err)
	}

	return SigningInput{Header: []byte(header), Payload: payload}, nil
}

// SignedAssertion is JWT used to authenticate as app. It is only valid
// between its iat and exp.
type SignedAssertion struct {
	// JWT token.
	Token string `json:"token" yaml:"token"`

	// Issuer, GitHub app ID or Client ID.
	Issuer string `json:"iss,omitempty" yaml:"iss,omitempty"`

	// Token exp time.
	Exp time.Time `json:"exp,omitempty" yaml:"exp,omitempty"`

	// Token issue time.
	IssuedAt time.Time `json:"iat,omitempty" yaml:"iat,omitempty"`
}

// LogValue implements [log/slog.LogValuer].
func (t SignedAssertion) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("iss", t.Issuer),
		slog.Time("exp", t.Exp),
		slog.Time("iat", t.IssuedAt),
		slog.String("token", "REDACTED"),
	)
}

// IsValid checks if [SignedAssertion] is valid at the given time.
func (t SignedAssertion) IsValid(now time.Time) bool {
	return t.Token != "" && t.IssuedAt.Before(now) && t.Exp.After(now)
}

// newSignedAssertion assembles the signed JWT from signing input and
// raw signature.
func newSignedAssertion(input SigningInput, signature []byte) (SignedAssertion, error) {
	payload := api.JWTPayload{}
	err := json.Unmarshal(input.Payload, &payload)
	if err != nil {
		return SignedAssertion{}, fmt.Errorf("%w: payload is not valid JSON: %w", ErrInvalidClaims, err)
	}

	return SignedAssertion{
		Token:    input.String() + "." + base64.RawURLEncoding.EncodeToString(signature),
		Issuer:   payload.Issuer,
		IssuedAt: time.Unix(payload.IssuedAt, 0),
		Exp:      time.Unix(payload.Exp, 0),
	}, nil
}
