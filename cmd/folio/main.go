// Package main provides the folio CLI.
package main

import "github.com/mesh-intelligence/folio/internal/cli"

func main() {
	cli.Execute()
}
