package orchestrator

import "errors"

var (
	// ErrUnknownProjectFilter is returned when --project names a plan the
	// registry never registered.
	ErrUnknownProjectFilter = errors.New("orchestrator: unknown project filter")

	// ErrNoCombinations is returned when axis resolution produces an empty
	// cartesian product (should not happen: resolveAxis always yields at
	// least the default sentinel).
	ErrNoCombinations = errors.New("orchestrator: no combinations to build")

	// ErrToolchainNotConfigured is returned when a combination names a
	// toolchain the orchestrator has no factory for.
	ErrToolchainNotConfigured = errors.New("orchestrator: toolchain not configured")
)
