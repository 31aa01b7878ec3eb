package orchestrator

import (
	"sort"

	"github.com/csbuild/csbuild/internal/plan"
)

// OrderPlans sorts names (already in DAG dependency order, e.g. from
// Registry.DependencyOrder) by (ignoreDependencyOrdering ? -priority : 0,
// DAG position), stable. A plan with ignoreDependencyOrdering set is pulled
// forward in the build queue by its priority; every other plan keeps its
// natural dependency-order position (SPEC_FULL §C.1).
func OrderPlans(reg *plan.Registry, names []string) []string {
	type entry struct {
		name string
		key  int
		pos  int
	}
	entries := make([]entry, len(names))
	for i, name := range names {
		p, _ := reg.Get(name)
		key := 0
		if p != nil && p.IgnoreDependencyOrdering {
			key = -p.Priority
		}
		entries[i] = entry{name: name, key: key, pos: i}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].pos < entries[j].pos
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}
