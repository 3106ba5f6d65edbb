// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

// Package keyvault implements [githubtools.RemoteSigner] backed by
// an RSA key held in Azure Key Vault or Azure Managed HSM.
//
// Private key never leaves the vault, only SHA-256 digests are sent to it.
package keyvault

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"slices"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"

	"github.com/swsphn/github-tools"
)

var (
	_ githubtools.RemoteSigner = (*Signer)(nil)
	_ keysClient               = (*azkeys.Client)(nil)
	_ slog.LogValuer           = (*Signer)(nil)
)

// keysClient is subset of [azkeys.Client] used by [Signer].
type keysClient interface {
	GetKey(ctx context.Context, name string, version string, options *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error)
	Sign(ctx context.Context, name string, version string, parameters azkeys.SignParameters, options *azkeys.SignOptions) (azkeys.SignResponse, error)
}

// Config is configuration for [Signer].
type Config struct {
	// VaultURL is URL of the vault, like "https://example.vault.azure.net/".
	VaultURL string

	// KeyName is name of the key in the vault.
	KeyName string

	// KeyVersion is version of the key. If empty, latest version at the time
	// of [New] is used for all signing operations.
	KeyVersion string

	// Credential used to authenticate to the vault. This is required.
	// See [NewDefaultCredential].
	Credential azcore.TokenCredential

	// ClientOptions are passed to [azkeys.NewClient] as is.
	ClientOptions *azkeys.ClientOptions
}

// Signer signs SHA-256 digests with RS256 using a key in Azure Key Vault.
type Signer struct {
	client  keysClient
	vault   string
	name    string
	version string
	public  *rsa.PublicKey
}

// NewDefaultCredential returns [azidentity.DefaultAzureCredential], which
// discovers credentials from environment, workload identity, managed identity
// and Azure CLI. If tenantID is not empty, it overrides AZURE_TENANT_ID.
func NewDefaultCredential(tenantID string) (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: %w", githubtools.ErrSigningUnavailable, err)
	}
	return cred, nil
}

// New returns a new [Signer] for the key.
//
// Key is fetched from the vault to verify that it exists, is enabled,
// is an RSA key of at-least 2048 bits and is allowed to sign.
// All errors wrap [githubtools.ErrSigningUnavailable].
func New(ctx context.Context, cfg Config) (*Signer, error) {
	var err error
	vault := strings.TrimSpace(cfg.VaultURL)
	if vault == "" {
		err = errors.Join(err, errors.New("vault url is empty"))
	} else if u, perr := url.Parse(vault); perr != nil || u.Scheme != "https" || u.Host == "" {
		err = errors.Join(err, fmt.Errorf("invalid vault url: %s", vault))
	}

	if strings.TrimSpace(cfg.KeyName) == "" {
		err = errors.Join(err, errors.New("key name is empty"))
	}

	if cfg.Credential == nil {
		err = errors.Join(err, errors.New("no credential provided"))
	}

	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: %w", githubtools.ErrSigningUnavailable, err)
	}

	client, err := azkeys.NewClient(vault, cfg.Credential, cfg.ClientOptions)
	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: %w", githubtools.ErrSigningUnavailable, err)
	}

	return newSigner(ctx, client, vault, strings.TrimSpace(cfg.KeyName), strings.TrimSpace(cfg.KeyVersion))
}

func newSigner(ctx context.Context, client keysClient, vault, name, version string) (*Signer, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := client.GetKey(ctx, name, version, nil)
	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: failed to get key %s: %w",
			githubtools.ErrSigningUnavailable, name, describe(err))
	}

	pub, resolved, err := inspect(resp.KeyBundle)
	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: key %s: %w",
			githubtools.ErrSigningUnavailable, name, err)
	}

	if version == "" {
		version = resolved
	}

	return &Signer{
		client:  client,
		vault:   vault,
		name:    name,
		version: version,
		public:  pub,
	}, nil
}

// inspect validates key bundle and returns its public key and version.
func inspect(bundle azkeys.KeyBundle) (*rsa.PublicKey, string, error) {
	if bundle.Attributes != nil && bundle.Attributes.Enabled != nil && !*bundle.Attributes.Enabled {
		return nil, "", errors.New("key is disabled")
	}

	key := bundle.Key
	if key == nil {
		return nil, "", errors.New("key material is missing")
	}

	if key.Kty == nil {
		return nil, "", errors.New("key type is missing")
	}

	switch *key.Kty {
	case azkeys.KeyTypeRSA, azkeys.KeyTypeRSAHSM:
	default:
		return nil, "", fmt.Errorf("unsupported key type: %s", *key.Kty)
	}

	if len(key.N) == 0 || len(key.E) == 0 {
		return nil, "", errors.New("rsa modulus or exponent is missing")
	}

	e := new(big.Int).SetBytes(key.E)
	if !e.IsInt64() || e.Int64() > 1<<31-1 || e.Int64() < 3 {
		return nil, "", errors.New("invalid rsa exponent")
	}

	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(key.N),
		E: int(e.Int64()),
	}

	if pub.N.BitLen() < 2048 {
		return nil, "", fmt.Errorf("rsa keys size(%d) < 2048 bits", pub.N.BitLen())
	}

	// KeyOps may be empty, in which case all operations are allowed.
	if len(key.KeyOps) > 0 {
		allowed := slices.ContainsFunc(key.KeyOps, func(op *azkeys.KeyOperation) bool {
			return op != nil && *op == azkeys.KeyOperationSign
		})
		if !allowed {
			return nil, "", errors.New("key is not allowed to sign")
		}
	}

	var version string
	if key.KID != nil {
		version = key.KID.Version()
	}
	return pub, version, nil
}

// describe returns a short error for Azure SDK response errors, which are
// very verbose and include full response.
func describe(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.ErrorCode != "" {
			return fmt.Errorf("%s(%d)", respErr.ErrorCode, respErr.StatusCode)
		}
		return fmt.Errorf("vault returned status %d", respErr.StatusCode)
	}
	return err
}

// Public returns RSA public key of the signer.
func (s *Signer) Public() crypto.PublicKey {
	return s.public
}

// KeyID returns key identifier as "<vault>/keys/<name>/<version>".
func (s *Signer) KeyID() string {
	u := strings.TrimSuffix(s.vault, "/") + "/keys/" + s.name
	if s.version != "" {
		u += "/" + s.version
	}
	return u
}

// LogValue implements [log/slog.LogValuer].
func (s *Signer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("vault", s.vault),
		slog.String("name", s.name),
		slog.String("version", s.version),
		slog.Int("bits", s.public.N.BitLen()),
	)
}

// SignDigest signs SHA-256 digest with RS256.
func (s *Signer) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("keyvault: invalid SHA-256 digest size: %d", len(digest))
	}

	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := s.client.Sign(ctx, s.name, s.version, azkeys.SignParameters{
		Algorithm: to.Ptr(azkeys.SignatureAlgorithmRS256),
		Value:     digest,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: failed to sign with key %s: %w",
			githubtools.ErrSigningUnavailable, s.name, describe(err))
	}

	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("keyvault: %w: vault returned empty signature",
			githubtools.ErrSigningUnavailable)
	}

	// Signature must match the public key verified by New.
	err = rsa.VerifyPKCS1v15(s.public, crypto.SHA256, digest, resp.Result)
	if err != nil {
		return nil, fmt.Errorf("keyvault: %w: signature does not match key %s",
			githubtools.ErrSigningUnavailable, s.KeyID())
	}
	return resp.Result, nil
}
