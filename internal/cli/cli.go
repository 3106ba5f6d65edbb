// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

// Package cli implements ght command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swsphn/github-tools"
	"github.com/swsphn/github-tools/keyvault"
)

// SignerFunc returns a signer for the key in the vault.
type SignerFunc func(ctx context.Context, cfg keyvault.Config, tenantID string) (githubtools.Signer, error)

// App holds dependencies of the command line interface.
type App struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Getenv    func(string) string
	NewSigner SignerFunc
}

// New returns [App] using process stdout, stderr and environment,
// which signs with keys in Azure Key Vault.
func New() *App {
	return &App{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Getenv:    os.Getenv,
		NewSigner: NewKeyVaultSigner,
	}
}

// NewKeyVaultSigner returns RS256 signer backed by a key in Azure Key Vault.
// Credentials are discovered with [keyvault.NewDefaultCredential].
func NewKeyVaultSigner(ctx context.Context, cfg keyvault.Config, tenantID string) (githubtools.Signer, error) {
	if cfg.Credential == nil {
		cred, err := keyvault.NewDefaultCredential(tenantID)
		if err != nil {
			return nil, err
		}
		cfg.Credential = cred
	}

	remote, err := keyvault.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return githubtools.NewRS256Signer(remote)
}

// Execute runs the command with given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	cmd := a.Command()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Command returns root command.
func (a *App) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ght",
		Short:         "Collection of GitHub helper tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	cmd.SetOut(a.Stdout)
	cmd.SetErr(a.Stderr)

	cmd.AddCommand(a.appTokenCommand())
	cmd.AddCommand(a.appJWTCommand())
	return cmd
}

// getenv returns trimmed value of environment variable.
func (a *App) getenv(key string) string {
	if a.Getenv == nil {
		return ""
	}
	return strings.TrimSpace(a.Getenv(key))
}

// logger returns logger writing to stderr at given level.
func (a *App) logger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
