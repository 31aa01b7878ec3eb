// Package settings implements the scoped key/value store described by the
// engine's data model: a tree-shaped override store keyed by axis labels
// (toolchain, architecture, target, platform, scope), written through a
// small set of merge verbs, and read back by the plan flattener.
package settings

import "github.com/csbuild/csbuild/internal/ordered"

// Kind distinguishes the four settings value shapes. Each has its own merge
// rule: scalar replaces, list appends, mapping updates key-wise, set unions.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMapping
	KindSet
)

// Value is a settings value of one of the four kinds. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind    Kind
	Scalar  any
	List    []string
	Mapping map[string]string
	Set     *ordered.Set[string]
}

// NewScalar wraps a scalar value.
func NewScalar(v any) *Value { return &Value{Kind: KindScalar, Scalar: v} }

// NewList wraps a list value.
func NewList(items ...string) *Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return &Value{Kind: KindList, List: cp}
}

// NewMapping wraps a mapping value.
func NewMapping(m map[string]string) *Value {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &Value{Kind: KindMapping, Mapping: cp}
}

// NewSet wraps a set value.
func NewSet(items ...string) *Value {
	return &Value{Kind: KindSet, Set: ordered.NewSetOf(items...)}
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Kind: v.Kind, Scalar: v.Scalar}
	if v.List != nil {
		out.List = append([]string(nil), v.List...)
	}
	if v.Mapping != nil {
		out.Mapping = make(map[string]string, len(v.Mapping))
		for k, mv := range v.Mapping {
			out.Mapping[k] = mv
		}
	}
	if v.Set != nil {
		out.Set = v.Set.Clone()
	}
	return out
}

// LibrariesKey is the one settings key subject to the subtract-then-union
// merge rule instead of plain set-union (a re-reference moves a library to
// the end of the link line).
const LibrariesKey = "libraries"

// Merge combines incoming into existing per the value-type merge rule and
// returns the result. existing may be nil, meaning "absent so far". key is
// the unqualified settings key (without tool-namespace prefix), used only to
// special-case LibrariesKey.
func Merge(existing, incoming *Value, key string) *Value {
	if incoming == nil {
		return existing
	}
	if existing == nil {
		return incoming.Clone()
	}
	switch incoming.Kind {
	case KindList:
		merged := append(append([]string(nil), existing.List...), incoming.List...)
		return &Value{Kind: KindList, List: merged}
	case KindMapping:
		merged := make(map[string]string, len(existing.Mapping)+len(incoming.Mapping))
		for k, v := range existing.Mapping {
			merged[k] = v
		}
		for k, v := range incoming.Mapping {
			merged[k] = v
		}
		return &Value{Kind: KindMapping, Mapping: merged}
	case KindSet:
		if key == LibrariesKey {
			out := existing.Set.Clone()
			out.SubtractThenUnion(incoming.Set.Items())
			return &Value{Kind: KindSet, Set: out}
		}
		return &Value{Kind: KindSet, Set: existing.Set.Union(incoming.Set)}
	default: // KindScalar: replace
		return incoming.Clone()
	}
}

// ToolKey namespaces a settings key to a tool identity so two tools can use
// the same short key without colliding, per the "<toolId>!<name>" rule.
func ToolKey(toolID, name string) string {
	return toolID + "!" + name
}
