package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewPlan("app", "/src")))
	err := reg.Register(NewPlan("app", "/src2"))
	assert.ErrorIs(t, err, ErrDuplicatePlan)
}

func TestDependencyOrderTopologicallySorts(t *testing.T) {
	reg := NewRegistry()
	lib := NewPlan("lib", "/src/lib")
	app := NewPlan("app", "/src/app")
	app.Dependencies = []string{"lib"}
	require.NoError(t, reg.Register(app))
	require.NoError(t, reg.Register(lib))

	order, err := reg.DependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "app"}, order)
}

func TestDependencyOrderRejectsUnknownDependency(t *testing.T) {
	reg := NewRegistry()
	app := NewPlan("app", "/src/app")
	app.Dependencies = []string{"missing"}
	require.NoError(t, reg.Register(app))

	_, err := reg.DependencyOrder()
	assert.ErrorIs(t, err, ErrUnknownDependency)
}

func TestTransitiveDependenciesExcludesSelf(t *testing.T) {
	reg := NewRegistry()
	base := NewPlan("base", "/src/base")
	mid := NewPlan("mid", "/src/mid")
	mid.Dependencies = []string{"base"}
	top := NewPlan("top", "/src/top")
	top.Dependencies = []string{"mid"}

	require.NoError(t, reg.Register(base))
	require.NoError(t, reg.Register(mid))
	require.NoError(t, reg.Register(top))

	deps, err := reg.TransitiveDependencies("top")
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "mid"}, deps)
}

func TestPlanAdmitsRespectsSelfLimits(t *testing.T) {
	p := NewPlan("app", "/src")
	p.Limit("architecture", "x86", "x64")
	assert.True(t, p.Admits(Combination{Architecture: "x86"}, "linux"))
	assert.False(t, p.Admits(Combination{Architecture: "arm"}, "linux"))
}

func TestPlanAdmitsTargetDefaultsUnrestricted(t *testing.T) {
	p := NewPlan("app", "/src")
	assert.True(t, p.AdmitsTarget("anything"))
	p.LimitTargets("debug", "release")
	assert.True(t, p.AdmitsTarget("debug"))
	assert.False(t, p.AdmitsTarget("fastdebug"))
}
