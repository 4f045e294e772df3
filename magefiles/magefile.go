//go:build mage

// Package main provides build targets for folio using Mage.
//
// Usage:
//
//	mage build             Compile the folio binary to bin/
//	mage install           Install folio to GOPATH/bin
//	mage clean             Remove build artifacts
//	mage test:all          Run every test
//	mage test:unit         Run tests with the race detector
//	mage test:cover        Write a coverage profile to bin/
//	mage test:postgres     Run the store tests against FOLIO_TEST_POSTGRES_URL
//	mage lint              Run golangci-lint
//	mage vet               Run go vet
//	mage check             Vet, lint and unit tests
//	mage stats             Print Go LOC
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stats prints Go lines of code, production and test.
func Stats() error {
	var prodLines, testLines int

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path == "vendor" || path == ".git" || path == binaryDir || strings.HasPrefix(path, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasPrefix(path, "magefiles") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") {
			testLines += count
		} else {
			prodLines += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Lines of code (Go, total):      %d\n", prodLines+testLines)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
