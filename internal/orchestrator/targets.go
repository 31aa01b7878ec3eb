package orchestrator

import (
	"github.com/csbuild/csbuild/internal/plan"
	"github.com/csbuild/csbuild/internal/settings"
)

// defaultTarget names one of the three targets RegisterDefaultTargets wires
// up, plus the fixed define/optimize/debug-symbol behavior the original
// build system hardcodes for it.
type defaultTarget struct {
	name         string
	optimize     bool
	debugSymbols bool
	defines      []string
}

var defaultTargets = []defaultTarget{
	{name: "debug", optimize: false, debugSymbols: true, defines: []string{"DEBUG"}},
	{name: "release", optimize: true, debugSymbols: false, defines: []string{"NDEBUG"}},
	{name: "fastdebug", optimize: true, debugSymbols: true, defines: []string{"DEBUG"}},
}

// RegisterDefaultTargets registers the three conventional targets
// (release, debug, fastdebug) on p, unless p already restricted itself to a
// known-target set. Each target gets fixed optimize/debug-symbol/defines
// settings written under its own target-scoped context, matching the
// original build system's hardcoded default-target behavior (SPEC_FULL §C.3).
func RegisterDefaultTargets(p *plan.Plan) {
	if p.KnownTargets.Len() == 0 {
		for _, dt := range defaultTargets {
			p.LimitTargets(dt.name)
		}
	}
	for _, dt := range defaultTargets {
		p.Store.Enter(settings.AxisTarget, []string{dt.name})
		p.Store.Set("optimize", settings.NewScalar(dt.optimize))
		p.Store.Set("debugSymbols", settings.NewScalar(dt.debugSymbols))
		p.Store.ExtendList("defines", dt.defines...)
		p.Store.Leave()
	}
}
