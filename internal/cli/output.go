// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/swsphn/github-tools"
)

// writeToken writes installation token in the given format.
//
// Text format only prints the token, unless verbose is true.
func writeToken(w io.Writer, format string, verbose bool, token *githubtools.InstallationToken) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, token)
	case OutputYAML:
		return writeYAML(w, token)
	}

	if !verbose {
		_, err := fmt.Fprintln(w, token.Token)
		return err
	}

	renderer := lipgloss.NewRenderer(w)
	title := renderer.NewStyle().Bold(true)
	heading := renderer.NewStyle().Bold(true).Underline(true)

	var b strings.Builder
	b.WriteString(title.Render("GitHub App Installation Token Generated"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Expires: %s\n", token.ExpiresAt.UTC().Format(time.RFC3339))

	b.WriteString("\n")
	b.WriteString(heading.Render("Permissions:"))
	b.WriteString("\n")
	for _, scope := range slices.Sorted(maps.Keys(token.Permissions)) {
		fmt.Fprintf(&b, "\t%s: %s\n", scope, token.Permissions[scope])
	}

	if len(token.Repositories) > 0 {
		b.WriteString("\n")
		b.WriteString(heading.Render("Repositories:"))
		b.WriteString("\n")
		for _, repo := range token.Repositories {
			fmt.Fprintf(&b, "\t%s\n", repo.FullName)
		}
	}

	b.WriteString("\n")
	b.WriteString(heading.Render("Token:"))
	b.WriteString("\n")
	b.WriteString(token.Token)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// writeAssertion writes JWT in the given format.
func writeAssertion(w io.Writer, format string, assertion githubtools.SignedAssertion) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, assertion)
	case OutputYAML:
		return writeYAML(w, assertion)
	}
	_, err := fmt.Fprintln(w, assertion.Token)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
