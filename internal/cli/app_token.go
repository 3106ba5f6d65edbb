// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/swsphn/github-tools"
)

func (a *App) appTokenCommand() *cobra.Command {
	var (
		common  commonFlags
		key     keyFlags
		token   tokenFlags
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "app-token APP_ID VAULT_URL KEY_NAME",
		Short: "Generate a GitHub app installation token",
		Long: `Generate a GitHub app installation token.

JWT is signed with an RSA key in Azure Key Vault and exchanged for an
installation access token. Private key never leaves the vault.

WARNING: Do not expose the generated token. Treat it like a password.`,
		Example: `  ght app-token 12345 https://example.vault.azure.net/ example-key
  ght app-token 12345 https://example.vault.azure.net/ example-key --repo swsphn/github-tools --permission contents:read`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := common.resolve(cmd.Flags(), a.getenv)
			if err != nil {
				return err
			}

			req, opts, err := token.resolve(cmd.Flags(), a.getenv)
			if err != nil {
				return err
			}

			issuer, err := a.issuer(cmd.Context(), args, &common, &key, opts...)
			if err != nil {
				return err
			}

			result, err := issuer.Issue(cmd.Context(), req)
			if err != nil {
				return err
			}

			return writeToken(a.Stdout, common.Output, verbose, &result)
		},
	}

	common.AddFlags(cmd.Flags())
	key.AddFlags(cmd.Flags())
	token.AddFlags(cmd.Flags())
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"print token expiry, permissions and repositories")
	return cmd
}

func (a *App) appJWTCommand() *cobra.Command {
	var (
		common commonFlags
		key    keyFlags
	)

	cmd := &cobra.Command{
		Use:   "app-jwt APP_ID VAULT_URL KEY_NAME",
		Short: "Generate a JWT to authenticate as GitHub app",
		Long: `Generate a JWT to authenticate as GitHub app.

JWT is valid for 10 minutes and is signed with an RSA key in Azure Key Vault.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := common.resolve(cmd.Flags(), a.getenv)
			if err != nil {
				return err
			}

			issuer, err := a.issuer(cmd.Context(), args, &common, &key)
			if err != nil {
				return err
			}

			assertion, err := issuer.Assertion(cmd.Context())
			if err != nil {
				return err
			}

			return writeAssertion(a.Stdout, common.Output, assertion)
		},
	}

	common.AddFlags(cmd.Flags())
	key.AddFlags(cmd.Flags())
	return cmd
}

// issuer builds signer and issuer from command arguments.
func (a *App) issuer(ctx context.Context, args []string, common *commonFlags, key *keyFlags, opts ...githubtools.Option) (*githubtools.Issuer, error) {
	logger, err := a.logger(common.LogLevel)
	if err != nil {
		return nil, err
	}

	if a.NewSigner == nil {
		return nil, fmt.Errorf("no signer configured")
	}

	signerCtx, cancel := withTimeout(ctx, common.Timeout)
	defer cancel()

	signer, err := a.NewSigner(signerCtx, key.Config(args[1], args[2]), key.TenantID)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		githubtools.WithEndpoint(common.Endpoint),
		githubtools.WithLogger(logger),
		githubtools.WithTimeout(common.Timeout),
	)
	issuer, err := githubtools.NewIssuer(args[0], signer, opts...)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "using github api endpoint",
		slog.String("app_id", issuer.AppID()),
		slog.String("endpoint", issuer.Endpoint()))
	return issuer, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
