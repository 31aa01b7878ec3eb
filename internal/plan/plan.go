// Package plan implements the pre-specialization project declaration (Plan),
// its registry, and the flattening algorithm (C4) that collapses a plan's
// scoped settings store plus its dependency chain into one concrete
// settings snapshot for a (toolchain, architecture, target) triple.
package plan

import (
	"fmt"

	"github.com/csbuild/csbuild/internal/dag"
	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/settings"
)

// Project type constants. Only "application" changes absorption scope
// selection (§4.3); everything else is treated as non-application.
const (
	ProjectTypeApplication = "application"
	ProjectTypeLibrary     = "library"
	ProjectTypeStub        = "stub"
)

// Plan is a project declaration before combination specialization.
type Plan struct {
	Name                     string
	WorkingDirectory         string
	Dependencies             []string
	Priority                 int
	IgnoreDependencyOrdering bool
	AutoDiscoverSourceFiles  bool
	ProjectType              string
	OutputName               string

	Store *settings.Store

	// KnownTargets restricts which targets this plan builds under. Empty
	// (the zero value) means unrestricted, consistent with the "empty means
	// no restriction" convention used for tool extension sets.
	KnownTargets *ordered.Set[string]

	// SelfLimits narrows which toolchain/architecture/target/platform names
	// this plan admits. Empty per-axis means unrestricted.
	SelfLimits map[string]*ordered.Set[string]
}

// NewPlan returns a plan with an empty settings store and no restrictions.
func NewPlan(name, workingDirectory string) *Plan {
	return &Plan{
		Name:             name,
		WorkingDirectory: workingDirectory,
		ProjectType:      ProjectTypeStub,
		OutputName:       name,
		Store:            settings.NewStore(),
		KnownTargets:     ordered.NewSet[string](),
		SelfLimits:       make(map[string]*ordered.Set[string]),
	}
}

// LimitTargets restricts this plan to the given targets.
func (p *Plan) LimitTargets(targets ...string) {
	for _, t := range targets {
		p.KnownTargets.Add(t)
	}
}

// Limit restricts this plan's axis (toolchain/architecture/target/platform)
// to the given names.
func (p *Plan) Limit(axis string, names ...string) {
	existing, ok := p.SelfLimits[axis]
	if !ok {
		existing = ordered.NewSet[string]()
		p.SelfLimits[axis] = existing
	}
	for _, n := range names {
		existing.Add(n)
	}
}

func admits(limits map[string]*ordered.Set[string], axis, name string) bool {
	s, ok := limits[axis]
	if !ok || s.Len() == 0 {
		return true
	}
	return s.Has(name)
}

// Admits reports whether combo+platform are allowed by this plan's self
// limits (flatten step 1).
func (p *Plan) Admits(combo Combination, platform string) bool {
	return admits(p.SelfLimits, settings.AxisToolchain, combo.Toolchain) &&
		admits(p.SelfLimits, settings.AxisArchitecture, combo.Architecture) &&
		admits(p.SelfLimits, settings.AxisTarget, combo.Target) &&
		admits(p.SelfLimits, settings.AxisPlatform, platform)
}

// AdmitsTarget reports whether target is among this plan's known targets
// (flatten step 3).
func (p *Plan) AdmitsTarget(target string) bool {
	if p.KnownTargets.Len() == 0 {
		return true
	}
	return p.KnownTargets.Has(target)
}

// Combination is one (toolchain, architecture, target) triple the
// orchestrator is building for.
type Combination struct {
	Toolchain    string
	Architecture string
	Target       string
}

// Registry holds all plans registered during makefile evaluation and
// resolves their dependency ordering via the ordered DAG (C1).
type Registry struct {
	plans *ordered.Map[string, *Plan]
}

// NewRegistry returns an empty plan registry.
func NewRegistry() *Registry {
	return &Registry{plans: ordered.NewMap[string, *Plan]()}
}

// Register adds p to the registry. Returns ErrDuplicatePlan if p.Name is
// already registered.
func (r *Registry) Register(p *Plan) error {
	if r.plans.Has(p.Name) {
		return fmt.Errorf("%w: %q", ErrDuplicatePlan, p.Name)
	}
	r.plans.Set(p.Name, p)
	return nil
}

// Get returns the plan named name.
func (r *Registry) Get(name string) (*Plan, bool) {
	return r.plans.Get(name)
}

// Names returns every registered plan name in registration order.
func (r *Registry) Names() []string {
	return r.plans.Keys()
}

// DependencyOrder returns every plan name in an order where each plan
// follows all of its dependencies, or ErrUnknownDependency /
// dag.ErrCycle-wrapped errors if the dependency graph is invalid.
func (r *Registry) DependencyOrder() ([]string, error) {
	g := dag.New[string, *Plan]()
	for _, name := range r.plans.Keys() {
		p, _ := r.plans.Get(name)
		for _, depName := range p.Dependencies {
			if !r.plans.Has(depName) {
				return nil, fmt.Errorf("%w: %q depends on unregistered plan %q", ErrUnknownDependency, name, depName)
			}
		}
		g.Add(name, p, p.Dependencies)
	}
	order, err := g.Order()
	if err != nil {
		return nil, fmt.Errorf("plan: dependency graph invalid (%w): %v", g.Diagnose(), g.DeferredKeys())
	}
	return order, nil
}

// TransitiveDependencies returns every plan name reachable (transitively)
// from name's dependency list, excluding name itself, ordered to match the
// registry's overall dependency order (i.e. "in registration order" per the
// spec's flatten step 6).
func (r *Registry) TransitiveDependencies(name string) ([]string, error) {
	full, err := r.DependencyOrder()
	if err != nil {
		return nil, err
	}

	closure := make(map[string]bool)
	var visit func(string) error
	visit = func(n string) error {
		p, ok := r.plans.Get(n)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDependency, n)
		}
		for _, dep := range p.Dependencies {
			if !closure[dep] {
				closure[dep] = true
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := visit(name); err != nil {
		return nil, err
	}

	var out []string
	for _, n := range full {
		if closure[n] {
			out = append(out, n)
		}
	}
	return out, nil
}
