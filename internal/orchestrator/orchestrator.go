// Package orchestrator drives a full build invocation (C11): it resolves
// the requested axis cartesian product, flattens and constructs concrete
// projects for each combination in dependency order, wires their resolved
// dependency pointers, fires build hooks around a scheduler run per
// combination, and aggregates every combination's build failures into one
// reported error.
package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/csbuild/csbuild/internal/logging"
	"github.com/csbuild/csbuild/internal/plan"
	"github.com/csbuild/csbuild/internal/project"
	"github.com/csbuild/csbuild/internal/scheduler"
	"github.com/csbuild/csbuild/internal/toolchain"
	"github.com/csbuild/csbuild/internal/workerpool"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Hooks are fired around each combination's scheduler run, mirroring the
// original build system's on_build_started/on_build_finished hook points
// (§4.9 step 6).
type Hooks struct {
	OnBuildStarted  func(ctx context.Context, combo plan.Combination, projects []*project.Project) error
	OnBuildFinished func(ctx context.Context, combo plan.Combination, projects []*project.Project, buildErr error) error
}

// SolutionGenerator is the external collaborator behind --generate-solution
// (§6): generate_solution(output_dir, name, [concrete_project,...]).
type SolutionGenerator interface {
	GenerateSolution(outputDir, name string, projects []*project.Project) error
}

// Options configures an Orchestrator for the lifetime of a process; RunRequest
// (passed to Run) varies per invocation.
type Options struct {
	Registry *plan.Registry

	// ToolchainFactories builds a fresh *toolchain.Toolchain instance per
	// concrete project: reachability state is per-project, so the same
	// named toolchain ("tc1", say) must never be shared across two
	// projects' instances.
	ToolchainFactories map[string]func() *toolchain.Toolchain

	Platform        string
	DefaultResolver DefaultResolver

	// Root is the invocation root holding the shared settings cache
	// (<root>/.csbuild/settings/); IntermediateRoot/OutputRoot are where
	// each project's own directories and ledger live.
	Root             string
	IntermediateRoot string
	OutputRoot       string

	UserData map[string]string

	NoDefaultTargets bool

	Hooks             Hooks
	SolutionGenerator SolutionGenerator
}

// RunRequest is one build invocation's request, built from parsed CLI flags
// (§6).
type RunRequest struct {
	Targets       []string
	Architectures []string
	Toolchains    []string
	Projects      []string

	Clean   bool
	Rebuild bool

	// GenerateSolution, if non-empty, is the solution name passed to
	// Options.SolutionGenerator from on_build_finished.
	GenerateSolution string

	Jobs        int
	StopOnError bool

	// DependencyGraph, if non-empty, short-circuits the run: Run renders
	// the registry's dependency graph in this format and returns without
	// building anything (§C.2).
	DependencyGraph GraphFormat
}

// ComboResult is one (toolchain, architecture, target) combination's
// outcome.
type ComboResult struct {
	Combo    plan.Combination
	Projects []*project.Project
	Err      error
}

// Result is Run's overall outcome.
type Result struct {
	RunID string

	// DependencyGraph holds the rendered graph text when RunRequest asked
	// for one; empty otherwise.
	DependencyGraph string

	Combos []ComboResult

	// FailureCount is the number of distinct build failures across every
	// combination, used for the process exit code (§6: "count-of-failures
	// otherwise").
	FailureCount int
}

// Orchestrator runs builds against a fixed Options configuration.
type Orchestrator struct {
	opts Options
}

// New returns an Orchestrator over opts.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// Run executes one build invocation end to end (§4.9).
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Result, error) {
	runID := uuid.New().String()
	log := logging.Get(logging.CategoryOrchestrator).With("run_id", runID)

	if req.DependencyGraph != "" {
		text, err := RenderDependencyGraph(o.opts.Registry, req.DependencyGraph)
		if err != nil {
			return nil, err
		}
		return &Result{RunID: runID, DependencyGraph: text}, nil
	}

	if !o.opts.NoDefaultTargets {
		for _, name := range o.opts.Registry.Names() {
			p, _ := o.opts.Registry.Get(name)
			RegisterDefaultTargets(p)
		}
	}

	allowed, err := o.projectFilter(req.Projects)
	if err != nil {
		return nil, err
	}

	combos := Combinations(req.Targets, req.Architectures, req.Toolchains, o.opts.DefaultResolver)
	if len(combos) == 0 {
		return nil, ErrNoCombinations
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	result := &Result{RunID: runID}
	var aggregate error

	for _, combo := range combos {
		log.Infow("building combination", "toolchain", combo.Toolchain, "architecture", combo.Architecture, "target", combo.Target)
		combResult := o.runCombination(ctx, req, combo, allowed, jobs)
		result.Combos = append(result.Combos, combResult)
		if combResult.Err != nil {
			result.FailureCount += len(multierr.Errors(combResult.Err))
			aggregate = multierr.Append(aggregate, fmt.Errorf("combination %s/%s/%s: %w", combo.Toolchain, combo.Architecture, combo.Target, combResult.Err))
		}

		if req.GenerateSolution != "" && o.opts.SolutionGenerator != nil {
			if err := o.opts.SolutionGenerator.GenerateSolution(o.opts.OutputRoot, req.GenerateSolution, combResult.Projects); err != nil {
				aggregate = multierr.Append(aggregate, fmt.Errorf("generate solution: %w", err))
			}
		}
	}

	return result, aggregate
}

// projectFilter resolves --project P... into the closure of every requested
// plan plus its transitive dependencies (dependencies must still be built
// even when not directly requested). A nil map means "no restriction".
func (o *Orchestrator) projectFilter(names []string) (map[string]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	allowed := make(map[string]bool)
	for _, name := range names {
		if _, ok := o.opts.Registry.Get(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProjectFilter, name)
		}
		allowed[name] = true
		deps, err := o.opts.Registry.TransitiveDependencies(name)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			allowed[dep] = true
		}
	}
	return allowed, nil
}

// runCombination builds every eligible plan under combo: constructs concrete
// projects in dependency order (wiring each project's resolved dependency
// pointers), reorders the resulting project list by priority/ignore-order
// (§C.1) for the scheduler run, fires hooks around it, and closes every
// ledger opened along the way.
func (o *Orchestrator) runCombination(ctx context.Context, req RunRequest, combo plan.Combination, allowed map[string]bool, jobs int) ComboResult {
	names, err := o.opts.Registry.DependencyOrder()
	if err != nil {
		return ComboResult{Combo: combo, Err: err}
	}

	tcFactory, ok := o.opts.ToolchainFactories[combo.Toolchain]
	if !ok {
		return ComboResult{Combo: combo, Err: fmt.Errorf("%w: %q", ErrToolchainNotConfigured, combo.Toolchain)}
	}

	built := make(map[string]*project.Project)
	var all []*project.Project
	defer func() {
		for _, p := range all {
			p.Close()
		}
	}()

	for _, name := range names {
		if allowed != nil && !allowed[name] {
			continue
		}
		p, _ := o.opts.Registry.Get(name)

		var deps []*project.Project
		transitive, err := o.opts.Registry.TransitiveDependencies(name)
		if err != nil {
			return ComboResult{Combo: combo, Err: err}
		}
		for _, depName := range transitive {
			if dp, ok := built[depName]; ok {
				deps = append(deps, dp)
			}
		}

		proj, skip, err := project.New(o.opts.Registry, p, combo, o.opts.Platform, tcFactory(), project.Options{
			IntermediateRoot: o.opts.IntermediateRoot,
			OutputRoot:       o.opts.OutputRoot,
			UserData:         o.opts.UserData,
			Dependencies:     deps,
		})
		if err != nil {
			return ComboResult{Combo: combo, Projects: all, Err: err}
		}
		if skip {
			continue
		}
		if p.ProjectType == plan.ProjectTypeStub && req.GenerateSolution == "" {
			proj.Close()
			continue
		}

		if req.Clean {
			for path := range proj.Ledger.PreviousArtifacts() {
				os.Remove(path)
			}
		}
		if req.Rebuild {
			proj.Ledger.DiscardPreviousResults()
		}

		built[name] = proj
		all = append(all, proj)
	}

	ordered := OrderPlans(o.opts.Registry, names)
	scheduled := make([]*project.Project, 0, len(all))
	for _, name := range ordered {
		if p, ok := built[name]; ok {
			scheduled = append(scheduled, p)
		}
	}

	if o.opts.Hooks.OnBuildStarted != nil {
		if err := o.opts.Hooks.OnBuildStarted(ctx, combo, scheduled); err != nil {
			return ComboResult{Combo: combo, Projects: all, Err: err}
		}
	}

	pool := workerpool.New(jobs, req.StopOnError)
	sched := scheduler.New(ctx, pool, scheduled)
	timer := logging.StartTimer(logging.CategoryScheduler, fmt.Sprintf("scheduler run %s/%s/%s", combo.Toolchain, combo.Architecture, combo.Target))
	buildErr := sched.Run()
	timer.StopWithInfo()
	pool.Shutdown()

	if o.opts.Hooks.OnBuildFinished != nil {
		if hookErr := o.opts.Hooks.OnBuildFinished(ctx, combo, scheduled, buildErr); hookErr != nil {
			buildErr = multierr.Append(buildErr, hookErr)
		}
	}

	return ComboResult{Combo: combo, Projects: all, Err: buildErr}
}
