package orchestrator

import (
	"testing"

	"github.com/csbuild/csbuild/internal/plan"
	"github.com/csbuild/csbuild/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultTargetsLimitsAndSetsDefines(t *testing.T) {
	p := plan.NewPlan("app", t.TempDir())
	p.Store.Enter(settings.AxisToolchain, []string{"tc1"})
	p.Store.Leave()

	RegisterDefaultTargets(p)

	assert.True(t, p.AdmitsTarget("debug"))
	assert.True(t, p.AdmitsTarget("release"))
	assert.True(t, p.AdmitsTarget("fastdebug"))
	assert.False(t, p.AdmitsTarget("weird"))

	debug, ok := p.Store.Root.LookupChild(settings.AxisTarget, "debug")
	require.True(t, ok)
	v, ok := debug.Leaves["defines"]
	require.True(t, ok)
	assert.Equal(t, []string{"DEBUG"}, v.List)

	release, ok := p.Store.Root.LookupChild(settings.AxisTarget, "release")
	require.True(t, ok)
	opt, ok := release.Leaves["optimize"]
	require.True(t, ok)
	assert.Equal(t, true, opt.Scalar)
}

func TestRegisterDefaultTargetsRespectsExistingLimit(t *testing.T) {
	p := plan.NewPlan("app", t.TempDir())
	p.LimitTargets("custom")

	RegisterDefaultTargets(p)

	assert.True(t, p.AdmitsTarget("custom"))
	assert.False(t, p.AdmitsTarget("debug"))
}
