package plan

import "errors"

var (
	// ErrDuplicatePlan is returned when two plans register under the same name.
	ErrDuplicatePlan = errors.New("plan: duplicate plan name")

	// ErrUnknownDependency is returned when a plan names a dependency that was
	// never registered.
	ErrUnknownDependency = errors.New("plan: unknown dependency")

	// ErrUnknownTarget names a requested target that no registered plan knows
	// about. Nothing in this module returns it: Flatten skips a plan that
	// does not admit the requested target.
	ErrUnknownTarget = errors.New("plan: unknown target")

	// ErrUnsupportedCombination names a requested
	// (toolchain, architecture, target, platform) combination that matches no
	// eligible plan. Nothing in this module returns it: Flatten skips every
	// plan that does not admit the combination.
	ErrUnsupportedCombination = errors.New("plan: unsupported combination")

	// ErrInvalidScope names an absorption scope label outside
	// {all, intermediate, final, children, scope}. Nothing in this module
	// returns it.
	ErrInvalidScope = errors.New("plan: invalid scope label")

	// ErrToolchainNotRegistered names a plan that has never opened a context
	// for the requested toolchain. Nothing in this module returns it: Flatten
	// reports that case as a skip.
	ErrToolchainNotRegistered = errors.New("plan: plan not registered under toolchain")
)
