//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binLint = "golangci-lint"

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV(binGo, "vet", "./...")
}

// Check runs vet, lint and the race-enabled unit tests, stopping at the
// first failure. This is the pre-merge gate.
func Check() {
	mg.SerialDeps(Vet, Lint, Test.Unit)
}
