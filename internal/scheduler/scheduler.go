// Package scheduler implements the dataflow executor (C9): it drives every
// composed tool of every concrete project to completion, respecting
// per-tool parallelism caps, dependency/cross-project gating, exclusive-tool
// input consumption, and the recompile checker's up-to-date short-circuit.
//
// Every mutation of scheduler, project, or toolchain state happens on the
// single coordinator goroutine that calls Run; workers only execute tool
// adapter code against a read-only BuildContext view of a project (§5).
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/csbuild/csbuild/internal/logging"
	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/project"
	"github.com/csbuild/csbuild/internal/tool"
	"github.com/csbuild/csbuild/internal/workerpool"
	"go.uber.org/multierr"
)

// Scheduler runs the dataflow algorithm over a fixed set of concrete
// projects for one (toolchain, architecture, target, platform) combination.
type Scheduler struct {
	ctx      context.Context
	pool     *workerpool.Pool
	projects []*project.Project

	inFlight         int
	perToolParallel  map[*tool.Tool]int
	reachabilityHeld map[reachKey]bool
	claimed          map[claimKey]bool
	builtThisRun     map[*project.Project]*ordered.Set[string]

	failures []error
}

type reachKey struct {
	proj *project.Project
	t    *tool.Tool
}

type claimKey struct {
	proj *project.Project
	t    *tool.Tool
	path string // "" for a null-input or group claim
}

// New returns a scheduler driving projects over pool.
func New(ctx context.Context, pool *workerpool.Pool, projects []*project.Project) *Scheduler {
	return &Scheduler{
		ctx:              ctx,
		pool:             pool,
		projects:         projects,
		perToolParallel:  make(map[*tool.Tool]int),
		reachabilityHeld: make(map[reachKey]bool),
		claimed:          make(map[claimKey]bool),
		builtThisRun:     make(map[*project.Project]*ordered.Set[string]),
	}
}

func (s *Scheduler) builtSet(proj *project.Project) *ordered.Set[string] {
	set, ok := s.builtThisRun[proj]
	if !ok {
		set = ordered.NewSet[string]()
		s.builtThisRun[proj] = set
	}
	return set
}

// Run performs the initial enqueue over every project, then drains the
// callback queue until the pool signals stop (the in-flight counter having
// reached zero), and returns the combined build-failure error, if any.
// A post-termination reachability audit catches the "did not finish"
// invariant violation named in §4.7.
func (s *Scheduler) Run() error {
	s.rescan()
	if s.inFlight == 0 {
		s.pool.RequestStop()
	}
	for {
		run, ok := s.pool.Next()
		if !ok {
			break
		}
		run()
	}

	for _, proj := range s.projects {
		if proj.Toolchain.TotalReachability() != 0 {
			s.failures = append(s.failures, fmt.Errorf("%w: project %q did not finish (reachability still %d)",
				ErrInternal, proj.Flattened.PlanName, proj.Toolchain.TotalReachability()))
		}
	}

	return multierr.Combine(s.failures...)
}

// rescan is the single re-enqueue pass used both for the initial enqueue
// and for every build_finished completion (§4.7's step 4 generalized to a
// full scan, since a full rescan after every completion is a safe superset
// of the spec's narrower "wake only the affected extension" optimization).
func (s *Scheduler) rescan() {
	for _, proj := range s.projects {
		for _, t := range proj.Toolchain.Tools() {
			if !proj.Toolchain.IsToolActive(t.Name) {
				continue
			}
			switch {
			// HasGroups() guards against a group adapter registered with no
			// InputGroups/CrossProjectInputGroups declared at all: without
			// it, such a tool would still match on t.Group != nil and get
			// enqueued once with an empty input slice, running RunGroup
			// over nothing instead of being left dormant.
			case t.Group != nil && t.HasGroups():
				s.tryEnqueueGroup(proj, t)
			case t.Single != nil && t.InputFiles.None:
				s.tryEnqueueNull(proj, t)
			case t.Single != nil:
				s.tryEnqueueSingle(proj, t)
			}
		}
	}
}

func (s *Scheduler) canRun(proj *project.Project, t *tool.Tool) bool {
	if t.MaxParallel > 0 && s.perToolParallel[t] >= t.MaxParallel {
		return false
	}
	if !proj.Toolchain.IsToolActive(t.Name) {
		return false
	}
	if anyActive(proj.Toolchain, t.Dependencies) {
		return false
	}
	if anyActiveCrossProject(proj, t.CrossProjectDependencies) {
		return false
	}
	if t.Group != nil {
		if anyActive(proj.Toolchain, t.InputGroups) {
			return false
		}
		if anyActiveCrossProject(proj, t.CrossProjectInputGroups) {
			return false
		}
	}
	return true
}

func anyActive(tc interface{ IsOutputActive(string) bool }, exts *ordered.Set[string]) bool {
	if exts == nil {
		return false
	}
	for _, ext := range exts.Items() {
		if tc.IsOutputActive(ext) {
			return true
		}
	}
	return false
}

func anyActiveCrossProject(proj *project.Project, exts *ordered.Set[string]) bool {
	if exts == nil {
		return false
	}
	for _, dep := range proj.Dependencies {
		if anyActive(dep.Toolchain, exts) {
			return true
		}
	}
	return false
}

func (s *Scheduler) claim(k claimKey) bool {
	if s.claimed[k] {
		return false
	}
	s.claimed[k] = true
	return true
}

func (s *Scheduler) ensureReachability(proj *project.Project, t *tool.Tool) {
	k := reachKey{proj, t}
	if !s.reachabilityHeld[k] {
		proj.Toolchain.CreateReachability(t)
		s.reachabilityHeld[k] = true
	}
}

// tryEnqueueSingle enqueues one task per not-yet-applied, not-yet-claimed
// input file in every extension this tool accepts. An exclusive tool's
// claim removes the file from its bucket immediately, so competing
// exclusive tools never see it (the Go expression of "exclusive tools
// consume their inputs" under concurrent workers — claiming must happen at
// enqueue time, not completion time, or two exclusive tools could both
// start work on the same file).
func (s *Scheduler) tryEnqueueSingle(proj *project.Project, t *tool.Tool) {
	for ext, set := range proj.Inputs {
		if !t.InputFiles.Has(ext) {
			continue
		}
		for _, f := range set.Items() {
			if f.HasApplied(t.Name) {
				continue
			}
			k := claimKey{proj, t, f.Path}
			if s.claimed[k] {
				continue
			}
			if !s.canRun(proj, t) {
				continue
			}
			s.claim(k)
			s.ensureReachability(proj, t)
			if t.Exclusive {
				set.Remove(f)
			}
			s.submitSingle(proj, t, f)
		}
	}
}

func (s *Scheduler) tryEnqueueNull(proj *project.Project, t *tool.Tool) {
	k := claimKey{proj, t, ""}
	if s.claimed[k] {
		return
	}
	if !s.canRun(proj, t) {
		return
	}
	s.claim(k)
	s.ensureReachability(proj, t)
	s.submitSingle(proj, t, nil)
}

func (s *Scheduler) tryEnqueueGroup(proj *project.Project, t *tool.Tool) {
	k := claimKey{proj, t, ""}
	if s.claimed[k] {
		return
	}
	if !s.canRun(proj, t) {
		return
	}

	var inputs []*tool.InputFile
	for _, ext := range groupExtensions(t) {
		inputs = append(inputs, proj.InputsFor(ext)...)
	}
	for _, dep := range proj.Dependencies {
		if t.CrossProjectInputGroups == nil {
			continue
		}
		for _, ext := range t.CrossProjectInputGroups.Items() {
			inputs = append(inputs, dep.InputsFor(ext)...)
		}
	}

	s.claim(k)
	s.ensureReachability(proj, t)
	s.submitGroup(proj, t, inputs)
}

func groupExtensions(t *tool.Tool) []string {
	var out []string
	if t.InputGroups != nil {
		out = append(out, t.InputGroups.Items()...)
	}
	return out
}

func inputPaths(inputs []*tool.InputFile) []string {
	out := make([]string, len(inputs))
	for i, f := range inputs {
		out[i] = f.Path
	}
	return out
}

// taskResult is the boxed return value of a task's Work function.
type taskResult struct {
	outputs  []string
	upToDate bool
}

func (s *Scheduler) submitSingle(proj *project.Project, t *tool.Tool, f *tool.InputFile) {
	s.inFlight++
	s.perToolParallel[t]++

	var path string
	if f != nil {
		path = f.Path
	}

	err := s.pool.Submit(workerpool.Task{
		Work: func() (any, error) {
			return s.runSingle(proj, t, f)
		},
		Callback: func(result any, err error) {
			var res taskResult
			if result != nil {
				res = result.(taskResult)
			}
			if err != nil {
				logging.Get(logging.CategoryScheduler).Errorw("tool failed",
					"tool", t.Name, "project", proj.Flattened.PlanName, "input", path, "error", err)
			}
			var inputs []*tool.InputFile
			if f != nil {
				inputs = []*tool.InputFile{f}
			}
			s.buildFinished(proj, t, inputs, res, err)
		},
	})
	if err != nil {
		s.inFlight--
		s.perToolParallel[t]--
		s.failures = append(s.failures, err)
	}
}

func (s *Scheduler) runSingle(proj *project.Project, t *tool.Tool, f *tool.InputFile) (taskResult, error) {
	if f != nil {
		if desc := t.Single.Describe(f); desc != "" {
			logging.Get(logging.CategoryScheduler).Debugw("invoking tool", "tool", t.Name, "cmd", desc)
		}
		checker := proj.Toolchain.GetChecker(f.Extension())
		if checker != nil {
			if prev, ok := proj.Ledger.GetLastResult([]string{f.Path}); ok {
				if !checker.ShouldRecompile(f, nil, prev) {
					return taskResult{outputs: prev, upToDate: true}, nil
				}
			}
		}
	}
	outputs, err := t.Single.Run(s.ctx, proj, f)
	return taskResult{outputs: outputs}, err
}

func (s *Scheduler) submitGroup(proj *project.Project, t *tool.Tool, inputs []*tool.InputFile) {
	s.inFlight++
	s.perToolParallel[t]++

	err := s.pool.Submit(workerpool.Task{
		Work: func() (any, error) {
			return s.runGroup(proj, t, inputs)
		},
		Callback: func(result any, err error) {
			var res taskResult
			if result != nil {
				res = result.(taskResult)
			}
			if err != nil {
				logging.Get(logging.CategoryScheduler).Errorw("group tool failed",
					"tool", t.Name, "project", proj.Flattened.PlanName, "error", err)
			}
			s.buildFinished(proj, t, inputs, res, err)
		},
	})
	if err != nil {
		s.inFlight--
		s.perToolParallel[t]--
		s.failures = append(s.failures, err)
	}
}

func (s *Scheduler) runGroup(proj *project.Project, t *tool.Tool, inputs []*tool.InputFile) (taskResult, error) {
	if desc := t.Group.Describe(nil); desc != "" {
		logging.Get(logging.CategoryScheduler).Debugw("invoking group tool", "tool", t.Name, "cmd", desc)
	}
	paths := inputPaths(inputs)
	checker := proj.Toolchain.GetChecker("")
	if checker != nil {
		if prev, ok := proj.Ledger.GetLastResult(paths); ok {
			if len(inputs) > 0 && !checker.ShouldRecompile(inputs[0], inputs[1:], prev) {
				return taskResult{outputs: prev, upToDate: true}, nil
			}
		}
	}
	outputs, err := t.Group.RunGroup(s.ctx, proj, inputs)
	return taskResult{outputs: outputs}, err
}

// buildFinished is the atomic completion handler (§4.7): it always runs on
// the coordinator goroutine (it is only ever invoked from inside a
// workerpool callback, which Run's Next loop drains serially).
func (s *Scheduler) buildFinished(proj *project.Project, t *tool.Tool, inputs []*tool.InputFile, res taskResult, err error) {
	s.inFlight--
	s.perToolParallel[t]--

	if err != nil {
		s.failures = append(s.failures, fmt.Errorf("project %q tool %q: %w", proj.Flattened.PlanName, t.Name, err))
	} else {
		for _, f := range inputs {
			f.MarkApplied(t.Name)
		}
		if !res.upToDate {
			s.processOutputs(proj, inputs, res.outputs, t)
		} else if len(inputs) > 0 {
			paths := inputPaths(inputs)
			proj.Ledger.RecordResult(paths, res.outputs)
		}
	}

	s.deactivateIfDone(proj, t)
	s.rescan()

	if s.inFlight == 0 {
		s.pool.RequestStop()
	}
}

func (s *Scheduler) processOutputs(proj *project.Project, sourceInputs []*tool.InputFile, outputs []string, producingTool *tool.Tool) {
	inherited := ordered.NewSet[string]()
	for _, f := range sourceInputs {
		inherited.UnionInPlace(f.Applied)
	}

	for _, out := range outputs {
		if err := proj.Ledger.AddArtifact(out); err != nil {
			s.failures = append(s.failures, err)
			continue
		}
		s.builtSet(proj).Add(out)
		proj.AddProducedInput(out, []string{producingTool.Name}, inherited)
	}
	sort.Strings(outputs)
	if err := proj.Ledger.RecordResult(inputPaths(sourceInputs), outputs); err != nil {
		s.failures = append(s.failures, err)
	}
}

func (s *Scheduler) hasMoreWork(proj *project.Project, t *tool.Tool) bool {
	if t.Single == nil || t.InputFiles.None {
		return false
	}
	for ext, set := range proj.Inputs {
		if !t.InputFiles.Has(ext) {
			continue
		}
		for _, f := range set.Items() {
			if !f.HasApplied(t.Name) {
				return true
			}
		}
	}
	return false
}

// deactivateIfDone implements build_finished step 2: a tool with no more
// reachable work is removed from the active set and its reachability
// reservation released exactly once.
func (s *Scheduler) deactivateIfDone(proj *project.Project, t *tool.Tool) {
	if s.hasMoreWork(proj, t) {
		return
	}
	if anyActive(proj.Toolchain, t.InputFiles.Extensions) {
		return
	}
	if anyActive(proj.Toolchain, t.Dependencies) || anyActiveCrossProject(proj, t.CrossProjectDependencies) {
		return
	}
	if t.Group != nil {
		if anyActive(proj.Toolchain, t.InputGroups) || anyActiveCrossProject(proj, t.CrossProjectInputGroups) {
			return
		}
	}

	proj.Toolchain.Deactivate(t.Name)
	k := reachKey{proj, t}
	if s.reachabilityHeld[k] {
		if err := proj.Toolchain.ReleaseReachability(t); err != nil {
			s.failures = append(s.failures, fmt.Errorf("%w: %v", ErrInternal, err))
		}
		delete(s.reachabilityHeld, k)
	}
}
