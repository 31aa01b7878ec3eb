package toolchain

// Dispatch implements the design note's "dynamic method resolution on
// composed tools" as a compile-time trait query: it returns every composed
// tool adapter that implements I, deduplicated by adapter identity, in
// composition order. Callers treat a one-element result as "the" answer and
// a multi-element result as every implementation firing once.
func Dispatch[I any](tc *Toolchain) []I {
	seen := make(map[any]bool)
	var out []I
	for _, t := range tc.tools.Values() {
		if t.Single != nil && !seen[t.Single] {
			if v, ok := any(t.Single).(I); ok {
				out = append(out, v)
				seen[t.Single] = true
			}
		}
		if t.Group != nil && !seen[t.Group] {
			if v, ok := any(t.Group).(I); ok {
				out = append(out, v)
				seen[t.Group] = true
			}
		}
	}
	return out
}
