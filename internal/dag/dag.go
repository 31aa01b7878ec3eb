// Package dag implements an ordered, acyclic graph with deferred insertion:
// a node can be added before its dependencies if they arrive later in
// program order, and is promoted into the graph once every dependency is
// present.
package dag

import "errors"

// ErrInvalid is returned by Iterate/Order when the graph still has deferred
// (unsatisfiable, as far as inserted so far) entries.
var ErrInvalid = errors.New("dag: graph has unresolved or cyclic entries")

type entry[K comparable, V any] struct {
	key  K
	val  V
	deps []K
}

// DAG is an insertion-ordered directed acyclic graph keyed by K, holding a
// payload V per node.
type DAG[K comparable, V any] struct {
	present  map[K]bool
	order    []K
	values   map[K]V
	deferred []entry[K, V]
}

// New returns an empty DAG.
func New[K comparable, V any]() *DAG[K, V] {
	return &DAG[K, V]{
		present: make(map[K]bool),
		values:  make(map[K]V),
	}
}

// Add inserts key with payload val and dependency keys deps. If every
// dependency is already present, key is inserted immediately and the
// deferred set is rescanned to fixed point, promoting anything newly
// satisfied. Otherwise key is parked in the deferred set.
func (d *DAG[K, V]) Add(key K, val V, deps []K) {
	if d.readyNow(deps) {
		d.insert(key, val)
		d.promote()
		return
	}
	d.deferred = append(d.deferred, entry[K, V]{key: key, val: val, deps: deps})
}

func (d *DAG[K, V]) readyNow(deps []K) bool {
	for _, dep := range deps {
		if !d.present[dep] {
			return false
		}
	}
	return true
}

func (d *DAG[K, V]) insert(key K, val V) {
	if d.present[key] {
		d.values[key] = val
		return
	}
	d.present[key] = true
	d.order = append(d.order, key)
	d.values[key] = val
}

// promote repeatedly scans the deferred list, inserting any entry whose
// dependencies are now all present, until a full pass inserts nothing.
func (d *DAG[K, V]) promote() {
	for {
		progressed := false
		remaining := d.deferred[:0:0]
		for _, e := range d.deferred {
			if d.readyNow(e.deps) {
				d.insert(e.key, e.val)
				progressed = true
			} else {
				remaining = append(remaining, e)
			}
		}
		d.deferred = remaining
		if !progressed {
			return
		}
	}
}

// Valid reports whether every added entry has been promoted into the graph
// (no deferred entries remain — i.e. no missing dependency and no cycle).
func (d *DAG[K, V]) Valid() bool {
	return len(d.deferred) == 0
}

// Len returns the total number of entries added, including deferred ones.
func (d *DAG[K, V]) Len() int {
	return len(d.order) + len(d.deferred)
}

// Order returns the promoted keys in insertion order, or ErrInvalid if the
// graph is not valid.
func (d *DAG[K, V]) Order() ([]K, error) {
	if !d.Valid() {
		return nil, ErrInvalid
	}
	out := make([]K, len(d.order))
	copy(out, d.order)
	return out, nil
}

// Iterate calls fn for every promoted entry in insertion order. It returns
// ErrInvalid without calling fn if the graph is not valid.
func (d *DAG[K, V]) Iterate(fn func(key K, val V)) error {
	if !d.Valid() {
		return ErrInvalid
	}
	for _, k := range d.order {
		fn(k, d.values[k])
	}
	return nil
}

// Get returns the payload for a promoted key.
func (d *DAG[K, V]) Get(key K) (V, bool) {
	if !d.present[key] {
		var zero V
		return zero, false
	}
	v, ok := d.values[key]
	return v, ok
}

// DeferredKeys returns the keys still stuck in the deferred set — either
// because a dependency was never added, or because of a cycle.
func (d *DAG[K, V]) DeferredKeys() []K {
	out := make([]K, 0, len(d.deferred))
	for _, e := range d.deferred {
		out = append(out, e.key)
	}
	return out
}
