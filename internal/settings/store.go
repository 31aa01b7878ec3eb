package settings

import "github.com/csbuild/csbuild/internal/ordered"

// frame is the set of trees that a write currently targets.
type frame []*Tree

// Store is the scoped settings store a Plan builds up during makefile
// evaluation: one root Tree plus a context stack that fans writes out to
// every tree the currently active (axis, names) selections reach.
type Store struct {
	Root *Tree

	frames    []frame
	limits    []map[string]*ordered.Set[string]
	toolStack []string
}

// NewStore returns a store with an empty root tree and the root frame
// active.
func NewStore() *Store {
	s := &Store{Root: NewTree()}
	s.frames = []frame{{s.Root}}
	s.limits = []map[string]*ordered.Set[string]{{}}
	return s
}

func (s *Store) currentFrame() frame {
	return s.frames[len(s.frames)-1]
}

func (s *Store) currentLimits() map[string]*ordered.Set[string] {
	return s.limits[len(s.limits)-1]
}

// SetLimits narrows which names are permitted for axis at and below the
// current scope. A nested SetLimits intersects with the parent's limit for
// that axis unless the parent limit is empty/unset, in which case it simply
// replaces it (restrictive-unless-parent-unbounded, per the spec).
func (s *Store) SetLimits(axis string, names []string) {
	cur := s.currentLimits()
	parent, hasParent := cur[axis]
	next := ordered.NewSetOf(names...)
	if hasParent && parent.Len() > 0 {
		restricted := ordered.NewSet[string]()
		for _, n := range next.Items() {
			if parent.Has(n) {
				restricted.Add(n)
			}
		}
		next = restricted
	}
	cur[axis] = next
}

// Permits reports whether name is allowed for axis under the active limits.
// An axis with no limit set (or an empty limit set) permits everything.
func (s *Store) Permits(axis, name string) bool {
	lim, ok := s.currentLimits()[axis]
	if !ok || lim.Len() == 0 {
		return true
	}
	return lim.Has(name)
}

// Enter pushes a new write frame: for every tree currently in scope, the
// child under (axis, name) is created for each of names, and the union of
// those children becomes the new frame. Names not permitted by the active
// limit for axis are skipped. The limit stack is duplicated unchanged so
// nested SetLimits calls only affect the new scope.
func (s *Store) Enter(axis string, names []string) {
	cur := s.currentFrame()
	var next frame
	for _, t := range cur {
		for _, name := range names {
			if !s.Permits(axis, name) {
				continue
			}
			next = append(next, t.Child(axis, name))
		}
	}
	s.frames = append(s.frames, next)

	parentLimits := s.currentLimits()
	cp := make(map[string]*ordered.Set[string], len(parentLimits))
	for k, v := range parentLimits {
		cp[k] = v
	}
	s.limits = append(s.limits, cp)
}

// Leave pops the most recently pushed write frame and its limits.
func (s *Store) Leave() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
	if len(s.limits) > 1 {
		s.limits = s.limits[:len(s.limits)-1]
	}
}

// EnterTool pushes a tool-identity namespace: subsequent leaf keys written
// without an explicit namespace are prefixed "<toolID>!".
func (s *Store) EnterTool(toolID string) {
	s.toolStack = append(s.toolStack, toolID)
}

// LeaveTool pops the most recently pushed tool namespace.
func (s *Store) LeaveTool() {
	if len(s.toolStack) > 0 {
		s.toolStack = s.toolStack[:len(s.toolStack)-1]
	}
}

func (s *Store) qualify(key string) string {
	if len(s.toolStack) == 0 {
		return key
	}
	return ToolKey(s.toolStack[len(s.toolStack)-1], key)
}

// Perform applies fn to the current value of key (nil if unset) in every
// tree of the current frame, replacing it with fn's result. This is the
// generic verb the other merge verbs are built from.
func (s *Store) Perform(key string, fn func(current *Value) *Value) {
	qk := s.qualify(key)
	for _, t := range s.currentFrame() {
		t.Leaves[qk] = fn(t.Leaves[qk])
	}
}

// Set replaces key's value in every tree of the current frame.
func (s *Store) Set(key string, v *Value) {
	s.Perform(key, func(*Value) *Value { return v })
}

// Unset removes key from every tree of the current frame.
func (s *Store) Unset(key string) {
	qk := s.qualify(key)
	for _, t := range s.currentFrame() {
		delete(t.Leaves, qk)
	}
}

// ExtendList appends items to key's list value (creating it if absent).
func (s *Store) ExtendList(key string, items ...string) {
	s.Perform(key, func(cur *Value) *Value {
		if cur == nil {
			return NewList(items...)
		}
		return &Value{Kind: KindList, List: append(append([]string(nil), cur.List...), items...)}
	})
}

// AppendList appends a single item to key's list value.
func (s *Store) AppendList(key, item string) {
	s.ExtendList(key, item)
}

// UpdateDict key-wise merges updates into key's mapping value.
func (s *Store) UpdateDict(key string, updates map[string]string) {
	s.Perform(key, func(cur *Value) *Value {
		if cur == nil {
			return NewMapping(updates)
		}
		merged := make(map[string]string, len(cur.Mapping)+len(updates))
		for k, v := range cur.Mapping {
			merged[k] = v
		}
		for k, v := range updates {
			merged[k] = v
		}
		return &Value{Kind: KindMapping, Mapping: merged}
	})
}

// UnionSet unions items into key's set value.
func (s *Store) UnionSet(key string, items ...string) {
	s.Perform(key, func(cur *Value) *Value {
		if cur == nil {
			return NewSet(items...)
		}
		out := cur.Set.Clone()
		for _, it := range items {
			out.Add(it)
		}
		return &Value{Kind: KindSet, Set: out}
	})
}

// AddToSet adds a single item to key's set value.
func (s *Store) AddToSet(key, item string) {
	s.UnionSet(key, item)
}
