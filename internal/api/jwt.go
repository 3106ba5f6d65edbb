// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package api

// JWTPayload as required by GitHub app. Field order is significant,
// it determines encoded payload.
type JWTPayload struct {
	IssuedAt int64  `json:"iat"`
	Exp      int64  `json:"exp"`
	Issuer   string `json:"iss"`
}

// Supported JWT algorithms.
const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

// Raw JWT headers. These are fixed per algorithm and never re-encoded.
const (
	RawJWTHeaderHS256 = `{"alg":"HS256","typ":"JWT"}`
	RawJWTHeaderRS256 = `{"alg":"RS256","typ":"JWT"}`
)
