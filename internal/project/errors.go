package project

import "errors"

var (
	// ErrWorkingDirectoryMissing is a discovery-time IO failure attributed to
	// the discovering project, per §7.
	ErrWorkingDirectoryMissing = errors.New("project: working directory missing")

	// ErrUnsupportedCombination names a combination whose architecture/platform
	// the toolchain rejects outright (flatten step 8). New reports that case
	// as a skip and does not return this error.
	ErrUnsupportedCombination = errors.New("project: toolchain does not support this architecture/platform combination")
)
