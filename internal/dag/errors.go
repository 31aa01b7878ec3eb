package dag

import "errors"

var (
	// ErrMissingNode is returned by Diagnose when a deferred entry's
	// dependency was never added to the graph at all.
	ErrMissingNode = errors.New("dag: referenced dependency was never added")

	// ErrCycle is returned by Diagnose when every deferred dependency was
	// eventually added, but a cycle among deferred entries still prevents
	// promotion.
	ErrCycle = errors.New("dag: cycle among deferred entries")
)

// MissingDependencies returns, among the keys referenced by deferred
// entries, those that were never added to the graph at all (neither
// promoted nor left deferred under their own key).
func (d *DAG[K, V]) MissingDependencies() []K {
	known := make(map[K]bool, len(d.order)+len(d.deferred))
	for _, k := range d.order {
		known[k] = true
	}
	for _, e := range d.deferred {
		known[e.key] = true
	}

	seen := make(map[K]bool)
	var missing []K
	for _, e := range d.deferred {
		for _, dep := range e.deps {
			if !known[dep] && !seen[dep] {
				seen[dep] = true
				missing = append(missing, dep)
			}
		}
	}
	return missing
}

// Diagnose returns nil if the graph is valid, ErrMissingNode if any deferred
// entry references a dependency key that was never added, or ErrCycle if
// every dependency key exists but a cycle still blocks promotion.
func (d *DAG[K, V]) Diagnose() error {
	if d.Valid() {
		return nil
	}
	if len(d.MissingDependencies()) > 0 {
		return ErrMissingNode
	}
	return ErrCycle
}
