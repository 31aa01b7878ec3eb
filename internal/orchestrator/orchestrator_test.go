package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/plan"
	"github.com/csbuild/csbuild/internal/project"
	"github.com/csbuild/csbuild/internal/settings"
	"github.com/csbuild/csbuild/internal/tool"
	"github.com/csbuild/csbuild/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doublerAdapter struct{ t *testing.T }

func (doublerAdapter) Describe(*tool.InputFile) string { return "" }
func (d doublerAdapter) Run(_ context.Context, bc tool.BuildContext, input *tool.InputFile) ([]string, error) {
	data, err := os.ReadFile(input.Path)
	require.NoError(d.t, err)
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(d.t, err)
	out := strings.TrimSuffix(input.Path, ".first") + ".second"
	if err := os.WriteFile(out, []byte(strconv.Itoa(n*2)), 0644); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

func newTestRegistry(t *testing.T, libDir, appDir string) *plan.Registry {
	t.Helper()
	reg := plan.NewRegistry()

	lib := plan.NewPlan("lib", libDir)
	lib.AutoDiscoverSourceFiles = true
	lib.ProjectType = plan.ProjectTypeLibrary
	lib.Store.Enter(settings.AxisToolchain, []string{"tc1"})
	lib.Store.Leave()
	require.NoError(t, reg.Register(lib))

	app := plan.NewPlan("app", appDir)
	app.AutoDiscoverSourceFiles = true
	app.ProjectType = plan.ProjectTypeApplication
	app.Dependencies = []string{"lib"}
	app.Store.Enter(settings.AxisToolchain, []string{"tc1"})
	app.Store.Leave()
	require.NoError(t, reg.Register(app))

	return reg
}

func buildOptions(t *testing.T, reg *plan.Registry) Options {
	t.Helper()
	root := t.TempDir()
	return Options{
		Registry: reg,
		ToolchainFactories: map[string]func() *toolchain.Toolchain{
			"tc1": func() *toolchain.Toolchain {
				doubler := tool.NewSingle(tool.Declaration{
					Name:        "doubler",
					InputFiles:  tool.Exts(".first"),
					OutputFiles: ordered.NewSetOf(".second"),
				}, doublerAdapter{t: t})
				return toolchain.New(doubler)
			},
		},
		Platform:         "linux",
		Root:             root,
		IntermediateRoot: filepath.Join(root, "intermediate"),
		OutputRoot:       filepath.Join(root, "output"),
		NoDefaultTargets: true,
	}
}

func TestRunBuildsDependencyOrderAndAggregatesNoFailures(t *testing.T) {
	libDir, appDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "l.first"), []byte("3"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "a.first"), []byte("4"), 0644))

	reg := newTestRegistry(t, libDir, appDir)
	opts := buildOptions(t, reg)

	var started, finished []string
	opts.Hooks.OnBuildStarted = func(_ context.Context, combo plan.Combination, projects []*project.Project) error {
		for _, p := range projects {
			started = append(started, p.Plan.Name)
		}
		return nil
	}
	opts.Hooks.OnBuildFinished = func(_ context.Context, combo plan.Combination, projects []*project.Project, buildErr error) error {
		for _, p := range projects {
			finished = append(finished, p.Plan.Name)
		}
		return nil
	}

	o := New(opts)
	result, err := o.Run(context.Background(), RunRequest{
		Toolchains: []string{"tc1"},
		Targets:    []string{"release"},
		Jobs:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FailureCount)
	require.Len(t, result.Combos, 1)
	assert.Equal(t, []string{"lib", "app"}, started)
	assert.Equal(t, []string{"lib", "app"}, finished)

	got, err := os.ReadFile(filepath.Join(libDir, "l.second"))
	require.NoError(t, err)
	assert.Equal(t, "6", string(got))

	got, err = os.ReadFile(filepath.Join(appDir, "a.second"))
	require.NoError(t, err)
	assert.Equal(t, "8", string(got))
}

func TestRunProjectFilterIncludesTransitiveDependencies(t *testing.T) {
	libDir, appDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "l.first"), []byte("1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "a.first"), []byte("1"), 0644))

	reg := newTestRegistry(t, libDir, appDir)
	opts := buildOptions(t, reg)
	o := New(opts)

	result, err := o.Run(context.Background(), RunRequest{
		Toolchains: []string{"tc1"},
		Targets:    []string{"release"},
		Projects:   []string{"app"},
		Jobs:       1,
	})
	require.NoError(t, err)
	require.Len(t, result.Combos, 1)

	names := make([]string, 0, len(result.Combos[0].Projects))
	for _, p := range result.Combos[0].Projects {
		names = append(names, p.Plan.Name)
	}
	assert.ElementsMatch(t, []string{"lib", "app"}, names)
}

func TestRunDependencyGraphShortCircuits(t *testing.T) {
	libDir, appDir := t.TempDir(), t.TempDir()
	reg := newTestRegistry(t, libDir, appDir)
	opts := buildOptions(t, reg)
	o := New(opts)

	result, err := o.Run(context.Background(), RunRequest{DependencyGraph: GraphFormatText})
	require.NoError(t, err)
	assert.Nil(t, result.Combos)
	assert.Equal(t, fmt.Sprintf("lib\n  app\n"), result.DependencyGraph)
}

func TestRunRebuildDiscardsPreviousResults(t *testing.T) {
	libDir, appDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "l.first"), []byte("5"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "a.first"), []byte("6"), 0644))

	reg := newTestRegistry(t, libDir, appDir)
	opts := buildOptions(t, reg)
	o := New(opts)

	req := RunRequest{Toolchains: []string{"tc1"}, Targets: []string{"release"}, Jobs: 1}
	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	req.Rebuild = true
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FailureCount)

	got, err := os.ReadFile(filepath.Join(libDir, "l.second"))
	require.NoError(t, err)
	assert.Equal(t, "10", string(got))
}

func TestRunCleanRemovesPreviousArtifactsBeforeRebuilding(t *testing.T) {
	libDir, appDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "l.first"), []byte("1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "a.first"), []byte("1"), 0644))

	reg := newTestRegistry(t, libDir, appDir)
	opts := buildOptions(t, reg)
	o := New(opts)

	req := RunRequest{Toolchains: []string{"tc1"}, Targets: []string{"release"}, Jobs: 1}
	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	secondPath := filepath.Join(libDir, "l.second")
	before, err := os.Stat(secondPath)
	require.NoError(t, err)

	req.Clean = true
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FailureCount)

	after, err := os.Stat(secondPath)
	require.NoError(t, err, "the demo toolchain has no checker and always reruns, so a cleaned artifact reappears immediately")
	assert.True(t, after.ModTime().Equal(before.ModTime()) || after.ModTime().After(before.ModTime()))
}

func TestRunUnknownProjectFilterFails(t *testing.T) {
	libDir, appDir := t.TempDir(), t.TempDir()
	reg := newTestRegistry(t, libDir, appDir)
	opts := buildOptions(t, reg)
	o := New(opts)

	_, err := o.Run(context.Background(), RunRequest{
		Toolchains: []string{"tc1"},
		Targets:    []string{"release"},
		Projects:   []string{"nope"},
	})
	assert.ErrorIs(t, err, ErrUnknownProjectFilter)
}
