package workerpool

import "errors"

// ErrPoolStoppedAccepting is returned by Submit once the pool has stopped
// accepting new work, either because Shutdown was called or because a task
// failed while the pool is configured to stop on error.
var ErrPoolStoppedAccepting = errors.New("workerpool: not accepting new work")
