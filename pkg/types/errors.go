package types

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the core returns wraps exactly one of these so
// callers classify with errors.Is.
var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrValidation              = errors.New("validation failed")
	ErrCyclicDependency        = errors.New("cyclic dependency")
	ErrMissingDependencyOutput = errors.New("missing dependency output")
	ErrSecretUnavailable       = errors.New("secret unavailable")
	ErrUpstream                = errors.New("upstream model error")
	ErrRecursionBudgetExceeded = errors.New("recursion budget exceeded")
	ErrShutdownInterrupted     = errors.New("job interrupted by worker pool shutdown")
)

// Specific errors, each wrapping a kind.
var (
	ErrInvalidTransition   = fmt.Errorf("invalid status transition: %w", ErrConflict)
	ErrSectionLocked       = fmt.Errorf("section execution is locked: %w", ErrConflict)
	ErrInvalidName         = fmt.Errorf("name must not be empty: %w", ErrValidation)
	ErrInvalidID           = fmt.Errorf("id must not be empty: %w", ErrValidation)
	ErrInvalidOrder        = fmt.Errorf("section order must be >= 1: %w", ErrValidation)
	ErrSelfDependency      = fmt.Errorf("section cannot depend on itself: %w", ErrValidation)
	ErrCrossDocument       = fmt.Errorf("sections belong to different documents: %w", ErrValidation)
	ErrInvalidSecret       = fmt.Errorf("secret value must not be empty: %w", ErrValidation)
	ErrUnsupportedProvider = fmt.Errorf("unsupported provider: %w", ErrValidation)
	ErrInvalidPayload      = fmt.Errorf("invalid job payload: %w", ErrValidation)
)

// kinds lists the error kinds in classification order.
var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "NotFound"},
	{ErrConflict, "Conflict"},
	{ErrValidation, "Validation"},
	{ErrCyclicDependency, "CyclicDependency"},
	{ErrMissingDependencyOutput, "MissingDependencyOutput"},
	{ErrSecretUnavailable, "SecretUnavailable"},
	{ErrUpstream, "UpstreamError"},
	{ErrRecursionBudgetExceeded, "RecursionBudgetExceeded"},
	{ErrShutdownInterrupted, "ShutdownInterrupted"},
}

// KindOf returns the name of the error kind err wraps, or "Internal" when it
// wraps none of them.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// IsClientError reports whether err is recovered at the operation boundary
// (not-found, conflict and validation failures).
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation)
}
