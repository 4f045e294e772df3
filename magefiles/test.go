//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, cover, postgres).
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs every test with the race detector.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-race", "-count=1", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the
// per-function summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+profile)
}

// Postgres runs the store tests against the database named by
// FOLIO_TEST_POSTGRES_URL.
func (Test) Postgres() error {
	if os.Getenv("FOLIO_TEST_POSTGRES_URL") == "" {
		return errors.New("FOLIO_TEST_POSTGRES_URL is not set")
	}
	return sh.RunV(binGo, "test", "-v", "-count=1", "-run", "Postgres", "./internal/store/...")
}
