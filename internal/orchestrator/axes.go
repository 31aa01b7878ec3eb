package orchestrator

import "github.com/csbuild/csbuild/internal/plan"

// DefaultAxis is the sentinel the command line uses to mean "whatever this
// toolchain/architecture/target's own default is", per §4.9 step 1.
const DefaultAxis = "<default>"

// resolveAxis returns names unchanged if non-empty, or the single default
// sentinel otherwise (§4.9 step 1: "defaulting each axis to a single
// <default> sentinel").
func resolveAxis(names []string) []string {
	if len(names) == 0 {
		return []string{DefaultAxis}
	}
	return names
}

// DefaultResolver supplies the per-plan defaults §4.9 step 3 needs: the
// platform-dependent default toolchain, and the toolchain-dependent default
// architecture. Target's default is fixed to "debug" (RegisterDefaultTargets'
// own first-class target), matching the original build system's convention
// of building debug unless told otherwise.
type DefaultResolver struct {
	Platform string

	// DefaultToolchain returns the toolchain name to use for platform when
	// the user passed <default>.
	DefaultToolchain func(platform string) string

	// DefaultArchitecture returns the architecture name to use for
	// toolchain when the user passed <default>.
	DefaultArchitecture func(toolchainName string) string

	// DefaultTargetName overrides the "debug" fallback, if set.
	DefaultTargetName string
}

func (r DefaultResolver) defaultTarget() string {
	if r.DefaultTargetName != "" {
		return r.DefaultTargetName
	}
	return "debug"
}

func (r DefaultResolver) resolveToolchain(name string) string {
	if name != DefaultAxis {
		return name
	}
	if r.DefaultToolchain != nil {
		return r.DefaultToolchain(r.Platform)
	}
	return name
}

func (r DefaultResolver) resolveArchitecture(toolchainName, name string) string {
	if name != DefaultAxis {
		return name
	}
	if r.DefaultArchitecture != nil {
		return r.DefaultArchitecture(toolchainName)
	}
	return name
}

func (r DefaultResolver) resolveTarget(name string) string {
	if name != DefaultAxis {
		return name
	}
	return r.defaultTarget()
}

// Combinations returns the cartesian product of targets × architectures ×
// toolchains (§4.9 step 1/3/4), each axis defaulted via resolveAxis and
// <default> sentinels resolved via r.
func Combinations(targets, architectures, toolchains []string, r DefaultResolver) []plan.Combination {
	var out []plan.Combination
	for _, tcRaw := range resolveAxis(toolchains) {
		tc := r.resolveToolchain(tcRaw)
		for _, archRaw := range resolveAxis(architectures) {
			arch := r.resolveArchitecture(tc, archRaw)
			for _, tgtRaw := range resolveAxis(targets) {
				tgt := r.resolveTarget(tgtRaw)
				out = append(out, plan.Combination{Toolchain: tc, Architecture: arch, Target: tgt})
			}
		}
	}
	return out
}
