// Package project builds the concrete project (C7): a plan specialized
// against one (toolchain, architecture, target, platform) combination, with
// its settings snapshot flattened and macro-expanded, its intermediate and
// output directories resolved and created, its artifact ledger opened, and
// its initial set of input files discovered.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/csbuild/csbuild/internal/logging"
	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/plan"
	"github.com/csbuild/csbuild/internal/settings"
	"github.com/csbuild/csbuild/internal/tool"
	"github.com/csbuild/csbuild/internal/toolchain"
)

// Options configures concrete project construction beyond what Flatten
// itself needs.
type Options struct {
	// IntermediateRoot/OutputRoot are the run-wide base directories; each
	// project gets its own subdirectory under them, keyed by plan name and
	// combination.
	IntermediateRoot string
	OutputRoot       string

	ExtraDirectories   []string
	ExcludeDirectories []string
	ExplicitSourceFiles []string

	// UserData is exposed to macro expansion by bare key ("{key}"), looked
	// up after the fixed project fields and before settings keys.
	UserData map[string]string

	// Dependencies are this plan's already-constructed dependency projects,
	// in dependency order, wired in by the orchestrator.
	Dependencies []*Project
}

// Project is a plan specialized to one combination: C7's concrete project.
type Project struct {
	Plan      *plan.Plan
	Combo     plan.Combination
	Platform  string
	Flattened *plan.Flattened
	Toolchain *toolchain.Toolchain

	workingDirectory      string
	intermediateDirectory string
	outputDirectory       string

	Ledger *Ledger

	// Inputs maps extension -> the ordered set of input files currently
	// carrying that extension, including files produced during this run.
	Inputs map[string]*ordered.Set[*tool.InputFile]

	Dependencies []*Project
}

func combinationDirName(combo plan.Combination, platform string) string {
	return filepath.Join(combo.Toolchain, combo.Architecture, combo.Target, platform)
}

func ledgerName(projectName string, combo plan.Combination) string {
	return fmt.Sprintf("%s_%s_%s_%s", projectName, combo.Toolchain, combo.Architecture, combo.Target)
}

// New constructs the concrete project for p under combo+platform, per §4.3
// (via plan.Flatten) and §4.5. It returns (nil, true, nil) if the
// combination should be silently skipped (the plan doesn't admit it, never
// opened this toolchain's context, doesn't know this target, or the
// composed toolchain doesn't support this architecture/platform — flatten
// step 8), and a non-nil error only for a hard fault.
func New(reg *plan.Registry, p *plan.Plan, combo plan.Combination, platform string, tc *toolchain.Toolchain, opts Options) (*Project, bool, error) {
	flattenTimer := logging.StartTimer(logging.CategoryProject, fmt.Sprintf("flatten %s", p.Name))
	flattened, skip, err := plan.Flatten(reg, p, combo, platform)
	flattenTimer.Stop()
	if err != nil {
		return nil, false, err
	}
	if skip {
		return nil, true, nil
	}
	if !tc.SupportsCombination(combo.Architecture, platform) {
		return nil, true, nil
	}

	if _, err := os.Stat(p.WorkingDirectory); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrWorkingDirectoryMissing, p.WorkingDirectory, err)
	}

	sub := combinationDirName(combo, platform)
	intermediateDir := filepath.Join(opts.IntermediateRoot, p.Name, sub)
	outputDir := filepath.Join(opts.OutputRoot, p.Name, sub)
	if err := os.MkdirAll(intermediateDir, 0755); err != nil {
		return nil, false, fmt.Errorf("project: create intermediate dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, false, fmt.Errorf("project: create output dir: %w", err)
	}

	csbuildDir := filepath.Join(intermediateDir, ".csbuild")
	ledger, err := OpenLedger(csbuildDir, ledgerName(p.Name, combo))
	if err != nil {
		return nil, false, err
	}

	proj := &Project{
		Plan:                  p,
		Combo:                 combo,
		Platform:              platform,
		Flattened:             flattened,
		Toolchain:             tc,
		workingDirectory:      p.WorkingDirectory,
		intermediateDirectory: intermediateDir,
		outputDirectory:       outputDir,
		Ledger:                ledger,
		Inputs:                make(map[string]*ordered.Set[*tool.InputFile]),
		Dependencies:          opts.Dependencies,
	}

	discoverTimer := logging.StartTimer(logging.CategoryProject, fmt.Sprintf("discover %s", p.Name))
	err = proj.discover(opts)
	discoverTimer.Stop()
	if err != nil {
		ledger.Close()
		return nil, false, err
	}

	proj.Flattened.Values = ExpandAll(proj.Flattened.Values, proj.macroNamespace(opts.UserData))

	return proj, false, nil
}

func (proj *Project) discover(opts Options) error {
	if proj.Plan.AutoDiscoverSourceFiles {
		files, err := Discover(DiscoveryOptions{
			WorkingDirectory:   proj.workingDirectory,
			ExtraDirectories:   opts.ExtraDirectories,
			ExcludeDirectories: opts.ExcludeDirectories,
			SkipDirectories:    []string{proj.intermediateDirectory, proj.outputDirectory},
			PreviousArtifacts:  proj.Ledger.PreviousArtifacts(),
			SearchExtensions:   proj.Toolchain.GetSearchExtensions(),
		})
		if err != nil {
			return fmt.Errorf("project: discovery for %q: %w", proj.Plan.Name, err)
		}
		for _, f := range files {
			proj.addInput(tool.NewInputFile(f))
		}
	}
	for _, f := range opts.ExplicitSourceFiles {
		proj.addInput(tool.NewInputFile(f))
	}
	return nil
}

func (proj *Project) addInput(f *tool.InputFile) {
	ext := f.Extension()
	set, ok := proj.Inputs[ext]
	if !ok {
		set = ordered.NewSet[*tool.InputFile]()
		proj.Inputs[ext] = set
	}
	set.Add(f)
}

// AddProducedInput records a file a tool produced this run under its output
// extension, so downstream tools (and discovery next run's ledger-skip) see
// it. inherited, if non-nil, seeds the new file's applied-tool set (e.g.
// with its source files' own applied sets) so a chain of same-extension
// exclusive tools does not re-trigger a tool that already touched this
// lineage.
func (proj *Project) AddProducedInput(path string, producedBy []string, inherited *ordered.Set[string]) *tool.InputFile {
	f := tool.NewProducedInputFile(path, producedBy)
	if inherited != nil {
		for _, name := range inherited.Items() {
			f.MarkApplied(name)
		}
	}
	proj.addInput(f)
	return f
}

// InputsFor returns the ordered input files currently carrying ext, or nil.
func (proj *Project) InputsFor(ext string) []*tool.InputFile {
	set, ok := proj.Inputs[ext]
	if !ok {
		return nil
	}
	return set.Items()
}

// macroNamespace resolves {name} macros against project fields, settings
// keys, the toolchain name, and user data, per flatten step... §4.5 step 5.
func (proj *Project) macroNamespace(userData map[string]string) Namespace {
	return func(name string) (string, bool) {
		switch name {
		case "workingDirectory":
			return proj.workingDirectory, true
		case "intermediateDirectory":
			return proj.intermediateDirectory, true
		case "outputDirectory":
			return proj.outputDirectory, true
		case "outputName":
			return proj.Flattened.OutputName, true
		case "projectName":
			return proj.Flattened.PlanName, true
		case "toolchain":
			return proj.Combo.Toolchain, true
		case "architecture":
			return proj.Combo.Architecture, true
		case "target":
			return proj.Combo.Target, true
		case "platform":
			return proj.Platform, true
		}
		if v, ok := userData[name]; ok {
			return v, true
		}
		if v, ok := proj.Flattened.Value(name); ok && v.Kind == settings.KindScalar {
			if s, ok := v.Scalar.(string); ok {
				return s, true
			}
		}
		return "", false
	}
}

// WorkingDirectory, IntermediateDirectory, OutputDirectory, and Setting
// satisfy tool.BuildContext.
func (proj *Project) WorkingDirectory() string      { return proj.workingDirectory }
func (proj *Project) IntermediateDirectory() string { return proj.intermediateDirectory }
func (proj *Project) OutputDirectory() string       { return proj.outputDirectory }

func (proj *Project) Setting(key string) (*settings.Value, bool) {
	return proj.Flattened.Value(key)
}

// Close closes the project's ledger.
func (proj *Project) Close() error {
	return proj.Ledger.Close()
}
