// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

// Package apitestdata provides recorded GitHub API responses for testing.
//
// Responses are stored as JSON files in this directory and keyed by their
// file name, with and without the ".json" extension.
package apitestdata

import (
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// AppID Test App ID.
const AppID = "12345"

// InstallationOwner Testdata installation owner.
const InstallationOwner = "gh-integration-tests"

// InstallationID Testdata installation ID.
const InstallationID = 42

// OtherInstallationOwner is owner of second installation in
// installations-multiple.json.
const OtherInstallationOwner = "gh-integration-tests-org"

// OtherInstallationID is ID of second installation in
// installations-multiple.json.
const OtherInstallationID = 43

// Dir is path to test data directory relative to module root.
var Dir = filepath.Join("internal", "testdata", "apitestdata")

// Read api data once.
var once sync.Once

// API data storage.
var apiDataMap map[string][]byte

// Get returns API test data which is a map of test data to JSON responses
// From API endpoint. This must be called from tests at module root.
func Get(t *testing.T) map[string][]byte {
	t.Helper()
	once.Do(func() {
		apiDataMap = make(map[string][]byte)
		items, err := os.ReadDir(Dir)
		if err != nil {
			t.Fatalf("failed to read dir %s: %s", Dir, err)
		}

		dataFiles := make([]fs.DirEntry, 0, len(items))
		for _, item := range items {
			if filepath.Ext(item.Name()) == ".json" && item.Type().IsRegular() {
				dataFiles = append(dataFiles, item)
			}
		}

		if len(dataFiles) == 0 {
			t.Fatalf("no api response data found in %s", Dir)
		}

		for _, item := range dataFiles {
			slurp, err := os.ReadFile(filepath.Join(Dir, item.Name()))
			if err != nil {
				t.Fatalf("Failed to read file %s: %s", item, err)
			}

			apiDataMap[item.Name()] = slurp
			apiDataMap[strings.TrimSuffix(item.Name(), ".json")] = slurp
		}
	})

	if apiDataMap == nil {
		t.Fatalf("failed to populate api data")
	}

	// Return clone of the map, as some callers may mutate map keys.
	return maps.Clone(apiDataMap)
}
