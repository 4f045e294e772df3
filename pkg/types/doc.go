// Package types defines the entities, lifecycle states, job payloads and
// error kinds shared by every folio component.
//
// Errors returned anywhere in folio wrap one of the kind sentinels declared
// in errors.go, so callers classify them with errors.Is or KindOf.
package types
