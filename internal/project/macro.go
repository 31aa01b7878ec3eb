package project

import (
	"strings"

	"github.com/csbuild/csbuild/internal/settings"
)

// Namespace resolves a macro name (e.g. "workingDirectory", a settings key,
// "toolchain", or a user-data key) to its expansion. A name it cannot
// resolve is left in the string as the literal "{name}" rather than
// erroring — an unresolvable macro stays visible, not a crash.
type Namespace func(name string) (string, bool)

const maxMacroPasses = 32

// expandString repeatedly substitutes every {name} occurrence using ns until
// a pass makes no change, or maxMacroPasses is hit (a guard against a macro
// that expands into itself).
func expandString(s string, ns Namespace) string {
	for pass := 0; pass < maxMacroPasses; pass++ {
		if !strings.Contains(s, "{") {
			return s
		}
		next, changed := expandOnce(s, ns)
		if !changed {
			return next
		}
		s = next
	}
	return s
}

func expandOnce(s string, ns Namespace) (string, bool) {
	var b strings.Builder
	changed := false
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		open += i
		b.WriteString(s[i:open])
		close := strings.IndexByte(s[open:], '}')
		if close < 0 {
			b.WriteString(s[open:])
			break
		}
		close += open
		name := s[open+1 : close]
		if val, ok := ns(name); ok {
			b.WriteString(val)
			changed = true
		} else {
			b.WriteString(s[open : close+1])
		}
		i = close + 1
	}
	return b.String(), changed
}

// ExpandValue returns a copy of v with every string-typed member macro
// expanded against ns: the scalar (if it holds a string), every list item,
// every mapping value, and every set member.
func ExpandValue(v *settings.Value, ns Namespace) *settings.Value {
	if v == nil {
		return nil
	}
	out := v.Clone()
	switch out.Kind {
	case settings.KindScalar:
		if s, ok := out.Scalar.(string); ok {
			out.Scalar = expandString(s, ns)
		}
	case settings.KindList:
		for i, item := range out.List {
			out.List[i] = expandString(item, ns)
		}
	case settings.KindMapping:
		for k, item := range out.Mapping {
			out.Mapping[k] = expandString(item, ns)
		}
	case settings.KindSet:
		items := out.Set.Items()
		expanded := make([]string, len(items))
		for i, item := range items {
			expanded[i] = expandString(item, ns)
		}
		out.Set = out.Set.Clone()
		for _, orig := range items {
			out.Set.Remove(orig)
		}
		for _, e := range expanded {
			out.Set.Add(e)
		}
	}
	return out
}

// ExpandAll expands every value in values against ns, returning a new map.
func ExpandAll(values map[string]*settings.Value, ns Namespace) map[string]*settings.Value {
	out := make(map[string]*settings.Value, len(values))
	for k, v := range values {
		out[k] = ExpandValue(v, ns)
	}
	return out
}
