//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "folio"
	binaryDir  = "bin"
	cmdDir     = "./cmd/folio"
	versionVar = "github.com/mesh-intelligence/folio/pkg/folio.Version"
)

// ldflags stamps FOLIO_VERSION into the binary when it is set.
func ldflags() []string {
	v := os.Getenv("FOLIO_VERSION")
	if v == "" {
		return nil
	}
	return []string{"-ldflags", "-X " + versionVar + "=" + v}
}

// Build compiles the folio binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := append([]string{"build", "-v"}, ldflags()...)
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV(binGo, args...)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install runs go install on the folio command with the same version stamp
// as Build.
func Install() error {
	mg.Deps(Vet)
	args := append([]string{"install"}, ldflags()...)
	return sh.RunV(binGo, append(args, cmdDir)...)
}
