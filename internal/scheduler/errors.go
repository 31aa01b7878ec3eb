package scheduler

import "errors"

// ErrInternal wraps a scheduler invariant violation (negative reachability,
// a project whose toolchain still reports nonzero reachability at
// termination): fatal per §7, distinct from an ordinary build failure.
var ErrInternal = errors.New("scheduler: internal invariant violation")
