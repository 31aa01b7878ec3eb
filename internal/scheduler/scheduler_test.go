package scheduler

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
	"github.com/csbuild/csbuild/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func readInt(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	return n
}

// doublerAdapter doubles a .first file's integer content into a sibling
// .second file — the non-exclusive half of scenario 5.
type doublerAdapter struct{ t *testing.T }

func (doublerAdapter) Describe(*tool.InputFile) string { return "" }
func (d doublerAdapter) Run(_ context.Context, bc tool.BuildContext, input *tool.InputFile) ([]string, error) {
	n := readInt(d.t, input.Path)
	out := strings.TrimSuffix(input.Path, ".first") + ".second"
	if err := os.WriteFile(out, []byte(strconv.Itoa(n*2)), 0644); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

// sumGroupAdapter sums every input file's integer content into one output
// file under the project's intermediate directory.
type sumGroupAdapter struct {
	t       *testing.T
	outName string
}

func (sumGroupAdapter) Describe(*tool.InputFile) string { return "" }
func (s sumGroupAdapter) RunGroup(_ context.Context, bc tool.BuildContext, inputs []*tool.InputFile) ([]string, error) {
	sum := 0
	for _, f := range inputs {
		sum += readInt(s.t, f.Path)
	}
	out := filepath.Join(bc.IntermediateDirectory(), s.outName)
	if err := os.WriteFile(out, []byte(strconv.Itoa(sum)), 0644); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

func writeNumberedFiles(t *testing.T, dir string, n int, ext string) {
	t.Helper()
	for i := 1; i <= n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("n%d%s", i, ext))
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(i)), 0644))
	}
}

func buildProject(t *testing.T, workingDir string, tc *toolchain.Toolchain) *project.Project {
	t.Helper()
	reg := plan.NewRegistry()
	p := plan.NewPlan("numbers", workingDir)
	p.AutoDiscoverSourceFiles = true
	p.Store.Enter(settings.AxisToolchain, []string{"tc1"})
	p.Store.Leave()
	require.NoError(t, reg.Register(p))

	root := t.TempDir()
	proj, skip, err := project.New(reg, p, plan.Combination{Toolchain: "tc1", Architecture: "x86", Target: "debug"}, "linux", tc, project.Options{
		IntermediateRoot: filepath.Join(root, "intermediate"),
		OutputRoot:       filepath.Join(root, "output"),
	})
	require.NoError(t, err)
	require.False(t, skip)
	t.Cleanup(func() { proj.Close() })
	return proj
}

// TestToolPipelineSanity is the literal scenario 5: Doubler(.first->.second),
// Adder(.second group -> .third). Each n.second must hold 2n; the single
// .third must hold the sum of 2..20 (110).
func TestToolPipelineSanity(t *testing.T) {
	workingDir := t.TempDir()
	writeNumberedFiles(t, workingDir, 10, ".first")

	doubler := tool.NewSingle(tool.Declaration{
		Name:        "doubler",
		InputFiles:  tool.Exts(".first"),
		OutputFiles: ordered.NewSetOf(".second"),
	}, doublerAdapter{t: t})
	adder := tool.NewGroup(tool.Declaration{
		Name:        "adder",
		InputFiles:  tool.NoneInput(),
		InputGroups: ordered.NewSetOf(".second"),
		OutputFiles: ordered.NewSetOf(".third"),
	}, sumGroupAdapter{t: t, outName: "sum.third"})

	tc := toolchain.New(doubler, adder)
	proj := buildProject(t, workingDir, tc)

	pool := workerpool.New(4, false)
	sched := New(context.Background(), pool, []*project.Project{proj})
	err := sched.Run()
	pool.Shutdown()
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		got := readInt(t, filepath.Join(workingDir, fmt.Sprintf("n%d.second", i)))
		assert.Equal(t, i*2, got)
	}

	sumPath := filepath.Join(proj.IntermediateDirectory(), "sum.third")
	assert.Equal(t, 110, readInt(t, sumPath))
}

// multiplierAdapter is an exclusive .first->.first transform used to build
// the exclusive chain in scenario 6.
type multiplierAdapter struct {
	t      *testing.T
	factor int
}

func (multiplierAdapter) Describe(*tool.InputFile) string { return "" }
func (m multiplierAdapter) Run(_ context.Context, bc tool.BuildContext, input *tool.InputFile) ([]string, error) {
	n := readInt(m.t, input.Path)
	out := strings.TrimSuffix(input.Path, ".first") + ".s.first"
	if err := os.WriteFile(out, []byte(strconv.Itoa(n*m.factor)), 0644); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

// TestExclusiveChain is the literal scenario 6: Doubler/Tripler/Quadrupler
// all exclusive on .first->.first, then Adder aggregates. Each of the three
// tools touches every lineage exactly once (enforced by inherited
// applied-tool provenance on produced files), so the final sum is
// 2*3*4 == 24 times the sum of the originals.
func TestExclusiveChain(t *testing.T) {
	workingDir := t.TempDir()
	writeNumberedFiles(t, workingDir, 10, ".first")

	mk := func(name string, factor int) *tool.Tool {
		return tool.NewSingle(tool.Declaration{
			Name:        name,
			InputFiles:  tool.Exts(".first"),
			OutputFiles: ordered.NewSetOf(".first"),
			Exclusive:   true,
		}, multiplierAdapter{t: t, factor: factor})
	}
	doubler := mk("doubler", 2)
	tripler := mk("tripler", 3)
	quadrupler := mk("quadrupler", 4)
	adder := tool.NewGroup(tool.Declaration{
		Name:        "adder",
		InputFiles:  tool.NoneInput(),
		InputGroups: ordered.NewSetOf(".first"),
		OutputFiles: ordered.NewSetOf(".third"),
	}, sumGroupAdapter{t: t, outName: "sum.third"})

	tc := toolchain.New(doubler, tripler, quadrupler, adder)
	proj := buildProject(t, workingDir, tc)

	pool := workerpool.New(4, false)
	sched := New(context.Background(), pool, []*project.Project{proj})
	err := sched.Run()
	pool.Shutdown()
	require.NoError(t, err)

	sumPath := filepath.Join(proj.IntermediateDirectory(), "sum.third")
	want := 24 * (1 + 2 + 3 + 4 + 5 + 6 + 7 + 8 + 9 + 10)
	assert.Equal(t, want, readInt(t, sumPath))
}

// TestRescanBurstLargerThanPoolNeverDeadlocks submits far more ready files
// in a single rescan pass than the pool has workers, with no interleaved
// Next() call until the whole burst has been queued (rescan's own shape) —
// the exact condition that deadlocks a worker pool whose callback posting
// can block once a fixed-size buffer fills.
func TestRescanBurstLargerThanPoolNeverDeadlocks(t *testing.T) {
	workingDir := t.TempDir()
	const fileCount = 64
	writeNumberedFiles(t, workingDir, fileCount, ".first")

	doubler := tool.NewSingle(tool.Declaration{
		Name:        "doubler",
		InputFiles:  tool.Exts(".first"),
		OutputFiles: ordered.NewSetOf(".second"),
	}, doublerAdapter{t: t})

	tc := toolchain.New(doubler)
	proj := buildProject(t, workingDir, tc)

	pool := workerpool.New(2, false)
	sched := New(context.Background(), pool, []*project.Project{proj})
	require.NoError(t, sched.Run())
	pool.Shutdown()

	for i := 1; i <= fileCount; i++ {
		got := readInt(t, filepath.Join(workingDir, fmt.Sprintf("n%d.second", i)))
		assert.Equal(t, i*2, got)
	}
}

// TestGroupToolWithNoGroupsNeverRuns covers a group adapter registered
// without declaring any InputGroups/CrossProjectInputGroups: the scheduler
// must leave it dormant rather than invoke RunGroup once over an empty
// input slice.
func TestGroupToolWithNoGroupsNeverRuns(t *testing.T) {
	workingDir := t.TempDir()
	writeNumberedFiles(t, workingDir, 3, ".first")

	emptyGroup := tool.NewGroup(tool.Declaration{
		Name:       "emptygroup",
		InputFiles: tool.NoneInput(),
	}, sumGroupAdapter{t: t, outName: "never.third"})

	tc := toolchain.New(emptyGroup)
	proj := buildProject(t, workingDir, tc)

	pool := workerpool.New(2, false)
	sched := New(context.Background(), pool, []*project.Project{proj})
	require.NoError(t, sched.Run())
	pool.Shutdown()

	_, err := os.Stat(filepath.Join(proj.IntermediateDirectory(), "never.third"))
	assert.True(t, os.IsNotExist(err))
}

func TestMaxParallelNeverExceeded(t *testing.T) {
	workingDir := t.TempDir()
	writeNumberedFiles(t, workingDir, 5, ".first")

	doubler := tool.NewSingle(tool.Declaration{
		Name:        "doubler",
		InputFiles:  tool.Exts(".first"),
		OutputFiles: ordered.NewSetOf(".second"),
		MaxParallel: 1,
	}, doublerAdapter{t: t})

	tc := toolchain.New(doubler)
	proj := buildProject(t, workingDir, tc)

	pool := workerpool.New(8, false)
	sched := New(context.Background(), pool, []*project.Project{proj})
	require.NoError(t, sched.Run())
	pool.Shutdown()

	for i := 1; i <= 5; i++ {
		got := readInt(t, filepath.Join(workingDir, fmt.Sprintf("n%d.second", i)))
		assert.Equal(t, i*2, got)
	}
}
