// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/swsphn/github-tools"
	"github.com/swsphn/github-tools/keyvault"
)

// Environment variables used when flags are not specified.
const (
	EnvEndpoint = "GHT_ENDPOINT"
	EnvOwner    = "GHT_OWNER"
	EnvLogLevel = "GHT_LOG_LEVEL"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

var outputFormats = []string{OutputText, OutputJSON, OutputYAML}

// keyFlags configure key used to sign the JWT.
type keyFlags struct {
	KeyVersion string
	TenantID   string
}

// AddFlags registers key flags.
func (f *keyFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.KeyVersion, "key-version", "", "key version (defaults to latest)")
	flagSet.StringVar(&f.TenantID, "tenant-id", "", "Azure tenant ID used to authenticate to the vault")
}

// Config returns key vault configuration. Credential is left empty.
func (f *keyFlags) Config(vaultURL, keyName string) keyvault.Config {
	return keyvault.Config{
		VaultURL:   vaultURL,
		KeyName:    keyName,
		KeyVersion: f.KeyVersion,
	}
}

// commonFlags are flags shared by all commands.
type commonFlags struct {
	Endpoint string
	Timeout  time.Duration
	Output   string
	LogLevel string
}

// AddFlags registers common flags.
func (f *commonFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Endpoint, "endpoint", "",
		fmt.Sprintf("GitHub REST API endpoint (env %s)", EnvEndpoint))
	flagSet.DurationVar(&f.Timeout, "timeout", time.Minute, "timeout for issuing the token")
	flagSet.StringVarP(&f.Output, "output", "o", OutputText,
		fmt.Sprintf("output format (one of %s)", strings.Join(outputFormats, ", ")))
	flagSet.StringVar(&f.LogLevel, "log-level", "",
		fmt.Sprintf("log level (env %s, defaults to warn)", EnvLogLevel))
}

// resolve populates unset flags from environment and validates them.
func (f *commonFlags) resolve(flagSet *pflag.FlagSet, getenv func(string) string) error {
	if !flagSet.Changed("endpoint") {
		f.Endpoint = getenv(EnvEndpoint)
	}

	if !flagSet.Changed("log-level") {
		f.LogLevel = getenv(EnvLogLevel)
	}

	if f.LogLevel == "" {
		f.LogLevel = "warn"
	}

	f.Output = strings.ToLower(strings.TrimSpace(f.Output))
	if !slices.Contains(outputFormats, f.Output) {
		return fmt.Errorf("invalid output format %q, must be one of %s",
			f.Output, strings.Join(outputFormats, ", "))
	}

	if f.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %s", f.Timeout)
	}
	return nil
}

// tokenFlags scope the installation token and select installation.
type tokenFlags struct {
	Repositories   []string
	Permissions    []string
	Owner          string
	InstallationID uint64
}

// AddFlags registers token flags.
func (f *tokenFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringArrayVar(&f.Repositories, "repo", nil,
		"limit token to repository, as name or owner/name (can be repeated)")
	flagSet.StringArrayVar(&f.Permissions, "permission", nil,
		"limit token to permission, as scope:level like contents:read (can be repeated)")
	flagSet.StringVar(&f.Owner, "owner", "",
		fmt.Sprintf("installation owner, if app is installed on more than one account (env %s)", EnvOwner))
	flagSet.Uint64Var(&f.InstallationID, "installation-id", 0,
		"installation id, if app is installed on more than one account")
}

// resolve populates unset flags from environment and returns token request
// and options selecting the installation.
func (f *tokenFlags) resolve(flagSet *pflag.FlagSet, getenv func(string) string) (githubtools.TokenRequest, []githubtools.Option, error) {
	if !flagSet.Changed("owner") {
		f.Owner = getenv(EnvOwner)
	}

	owner, repos, err := githubtools.ParseRepositories(f.Repositories...)
	if err != nil {
		return githubtools.TokenRequest{}, nil, err
	}

	perms, err := githubtools.ParsePermissions(f.Permissions...)
	if err != nil {
		return githubtools.TokenRequest{}, nil, err
	}

	var opts []githubtools.Option
	if f.Owner != "" {
		opts = append(opts, githubtools.WithOwner(f.Owner))
	}

	// Repositories owner must match the installation owner.
	if owner != "" {
		opts = append(opts, githubtools.WithOwner(owner))
	}

	if f.InstallationID != 0 {
		opts = append(opts, githubtools.WithInstallationID(f.InstallationID))
	}

	req := githubtools.TokenRequest{Permissions: perms}
	if len(repos) > 0 {
		req.Repositories = repos
	}
	return req, opts, nil
}
