package toolchain

import "errors"

var (
	// ErrToolchainNotRegistered names a requested toolchain with no registered
	// Toolchain instance. Nothing in this module returns it; the orchestrator
	// reports that case with its own ErrToolchainNotConfigured.
	ErrToolchainNotRegistered = errors.New("toolchain: not registered")

	// ErrLibraryNotFound is returned by a linker-style adapter (surfaced
	// through the toolchain) when a named library cannot be located.
	ErrLibraryNotFound = errors.New("toolchain: library not found")

	// ErrReachabilityNegative is a scheduler invariant violation: a
	// release_reachability call decremented a counter below zero.
	ErrReachabilityNegative = errors.New("toolchain: reachability counter went negative")
)
