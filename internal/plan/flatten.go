package plan

import "github.com/csbuild/csbuild/internal/settings"

// Flattened is the concrete settings snapshot produced by Flatten for one
// plan under one combination.
type Flattened struct {
	PlanName         string
	WorkingDirectory string
	ProjectType      string
	OutputName       string
	Values           map[string]*settings.Value
}

// Value returns the merged value for key, if any.
func (f *Flattened) Value(key string) (*settings.Value, bool) {
	v, ok := f.Values[key]
	return v, ok
}

// axisWalk lists the four combination axes absorption recurses through, in
// the order the spec's absorption algorithm names them.
func axisWalk(combo Combination, platform string) [4][2]string {
	return [4][2]string{
		{settings.AxisToolchain, combo.Toolchain},
		{settings.AxisArchitecture, combo.Architecture},
		{settings.AxisTarget, combo.Target},
		{settings.AxisPlatform, platform},
	}
}

// absorbSubtree merges every leaf of t into into (by the value-type merge
// rule), then recurses into whichever of the four combination-axis children
// exist under t. This is the per-tree-node half of the spec's absorption
// algorithm, used both for self-absorption (no scope filter) and for
// absorbing a scope-labeled subtree of a dependency (the filter has already
// been resolved by the time this is called).
func absorbSubtree(t *settings.Tree, into map[string]*settings.Value, combo Combination, platform string) {
	if t == nil {
		return
	}
	for key, val := range t.Leaves {
		into[key] = settings.Merge(into[key], val, unqualified(key))
	}
	for _, axis := range axisWalk(combo, platform) {
		if child, ok := t.LookupChild(axis[0], axis[1]); ok {
			absorbSubtree(child, into, combo, platform)
		}
	}
}

// unqualified strips a "<toolId>!" namespace prefix so the libraries
// special-case merge rule still fires on tool-namespaced library keys.
func unqualified(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '!' {
			return key[i+1:]
		}
	}
	return key
}

// scopeLabelsFor returns the scope labels a dependent absorbs from a
// dependency, chosen by the dependent's own project type (flatten step 6).
func scopeLabelsFor(projectType string) []string {
	if projectType == ProjectTypeApplication {
		return []string{settings.AxisScope + ":all", settings.AxisScope + ":children", settings.AxisScope + ":final"}
	}
	return []string{settings.AxisScope + ":all", settings.AxisScope + ":children", settings.AxisScope + ":scope"}
}

func scopeLabel(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[i+1:]
		}
	}
	return s
}

func appendLibrary(into map[string]*settings.Value, name string) {
	if name == "" {
		return
	}
	incoming := settings.NewSet(name)
	into[settings.LibrariesKey] = settings.Merge(into[settings.LibrariesKey], incoming, settings.LibrariesKey)
}

// resolveProjectType resolves the "projectType" settings key against only
// this plan's own tree (flatten step 4), so dependency scope-label choice
// can be decided before dependency absorption happens.
func (p *Plan) resolveProjectType(combo Combination, platform string) string {
	tmp := map[string]*settings.Value{}
	absorbSubtree(p.Store.Root, tmp, combo, platform)
	if v, ok := tmp["projectType"]; ok && v.Kind == settings.KindScalar {
		if s, ok := v.Scalar.(string); ok && s != "" {
			return s
		}
	}
	return p.ProjectType
}

// Flatten collapses reg's dependency chain and p's own settings store into
// one concrete settings snapshot for combo+platform, per §4.3. It returns
// (nil, true, nil) if the combination should be silently skipped for this
// plan (steps 1–3), and a non-nil error only for a hard configuration fault
// (unknown dependency). A plan that never opened a context for the requested
// toolchain is skipped, not reported as an error.
func Flatten(reg *Registry, p *Plan, combo Combination, platform string) (*Flattened, bool, error) {
	if !p.Admits(combo, platform) {
		return nil, true, nil
	}
	if _, ok := p.Store.Root.LookupChild(settings.AxisToolchain, combo.Toolchain); !ok {
		return nil, true, nil
	}
	if !p.AdmitsTarget(combo.Target) {
		return nil, true, nil
	}

	projectType := p.resolveProjectType(combo, platform)

	into := map[string]*settings.Value{}

	// A plan's own scope("all") override applies to itself as well as to
	// everything that depends on it (transitively) — absorb it here, before
	// the dependency loop, the same way the dependency loop absorbs a
	// dependency's scope("all") subtree into the dependent below. The final
	// unfiltered self-absorption at the end of this function never reaches
	// Scope children (absorbSubtree only recurses through the four
	// combination axes), so without this a plan's own "all" override would
	// only ever reach its dependents, never itself.
	if sub, ok := p.Store.Root.LookupChild(settings.AxisScope, "all"); ok {
		absorbSubtree(sub, into, combo, platform)
	}

	deps, err := reg.TransitiveDependencies(p.Name)
	if err != nil {
		return nil, false, err
	}
	for _, depName := range deps {
		dep, _ := reg.Get(depName)
		for _, labeled := range scopeLabelsFor(projectType) {
			label := scopeLabel(labeled)
			if label == "all" && projectType == ProjectTypeApplication {
				appendLibrary(into, dep.OutputName)
			}
			if sub, ok := dep.Store.Root.LookupChild(settings.AxisScope, label); ok {
				absorbSubtree(sub, into, combo, platform)
			}
		}
	}

	absorbSubtree(p.Store.Root, into, combo, platform)

	return &Flattened{
		PlanName:         p.Name,
		WorkingDirectory: p.WorkingDirectory,
		ProjectType:      projectType,
		OutputName:       p.OutputName,
		Values:           into,
	}, false, nil
}
