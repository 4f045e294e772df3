// Package folio holds build information for the folio binary.
package folio

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/folio/pkg/folio.Version=...".
var Version = "0.1.0"
