// Package toolchain composes a set of tools into the aggregate the
// scheduler drives: a precomputed reachability path per tool, live
// reachability counters per extension, an active-tool set, and method
// dispatch across composed tools (§4.4).
package toolchain

import (
	"fmt"

	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/tool"
)

// Checker is the per-extension recompile checker a toolchain hands back via
// GetChecker. Defined here (rather than imported from package checker) so
// this package has no dependency on the checker implementation; package
// checker's concrete type satisfies this interface structurally.
type Checker interface {
	ShouldRecompile(file *tool.InputFile, baselineInputs []*tool.InputFile, previousOutputs []string) bool
}

// Toolchain is an ordered collection of tools plus the reachability and
// activity bookkeeping the scheduler needs.
type Toolchain struct {
	tools    *ordered.Map[string, *tool.Tool]
	active   *ordered.Set[string]
	reach    map[string]int
	path     map[string]*ordered.Set[string]
	checkers map[string]Checker
	def      Checker
}

// New composes tools, in the given order, into a Toolchain. Every tool
// starts active; each tool's reachability path is precomputed.
func New(tools ...*tool.Tool) *Toolchain {
	tc := &Toolchain{
		tools:    ordered.NewMap[string, *tool.Tool](),
		active:   ordered.NewSet[string](),
		reach:    make(map[string]int),
		path:     make(map[string]*ordered.Set[string]),
		checkers: make(map[string]Checker),
	}
	for _, t := range tools {
		tc.tools.Set(t.Name, t)
		tc.active.Add(t.Name)
	}
	for _, t := range tools {
		tc.path[t.Name] = tc.computePath(t)
	}
	return tc
}

// computePath returns the fixed-point closure of tools reachable from t's
// outputs by following output→input chains through the other composed
// tools.
func (tc *Toolchain) computePath(t *tool.Tool) *ordered.Set[string] {
	path := ordered.NewSet[string]()
	frontier := ordered.NewSetOf(t.OutputFiles.Items()...)

	for {
		progressed := false
		for _, other := range tc.tools.Values() {
			if other.Name == t.Name || path.Has(other.Name) {
				continue
			}
			if tc.acceptsAny(other, frontier) {
				path.Add(other.Name)
				for _, ext := range other.OutputFiles.Items() {
					if frontier.Add(ext) {
						progressed = true
					}
				}
			}
		}
		if !progressed {
			break
		}
	}
	return path
}

func (tc *Toolchain) acceptsAny(t *tool.Tool, exts *ordered.Set[string]) bool {
	for _, ext := range exts.Items() {
		if t.InputFiles.Has(ext) {
			return true
		}
		if t.InputGroups != nil && t.InputGroups.Has(ext) {
			return true
		}
	}
	return false
}

// Get returns the named composed tool.
func (tc *Toolchain) Get(name string) (*tool.Tool, bool) {
	return tc.tools.Get(name)
}

// Tools returns every composed tool in composition order.
func (tc *Toolchain) Tools() []*tool.Tool {
	return tc.tools.Values()
}

// Path returns the reachability path precomputed for tool name.
func (tc *Toolchain) Path(name string) *ordered.Set[string] {
	p, ok := tc.path[name]
	if !ok {
		return ordered.NewSet[string]()
	}
	return p
}

// CreateReachability increments the reachability counter for every output
// of t and of every tool in t's path.
func (tc *Toolchain) CreateReachability(t *tool.Tool) {
	for _, ext := range t.OutputFiles.Items() {
		tc.reach[ext]++
	}
	for _, name := range tc.Path(t.Name).Items() {
		other, ok := tc.tools.Get(name)
		if !ok {
			continue
		}
		for _, ext := range other.OutputFiles.Items() {
			tc.reach[ext]++
		}
	}
}

// ReleaseReachability is the symmetric decrement to CreateReachability. It
// returns ErrReachabilityNegative (a scheduler invariant violation, fatal
// per §7) if any counter would go below zero.
func (tc *Toolchain) ReleaseReachability(t *tool.Tool) error {
	exts := append([]string(nil), t.OutputFiles.Items()...)
	for _, name := range tc.Path(t.Name).Items() {
		other, ok := tc.tools.Get(name)
		if !ok {
			continue
		}
		exts = append(exts, other.OutputFiles.Items()...)
	}
	for _, ext := range exts {
		if tc.reach[ext] <= 0 {
			return fmt.Errorf("%w: extension %q", ErrReachabilityNegative, ext)
		}
	}
	for _, ext := range exts {
		tc.reach[ext]--
	}
	return nil
}

// IsOutputActive reports whether ext's reachability counter is non-zero.
func (tc *Toolchain) IsOutputActive(ext string) bool {
	return tc.reach[ext] > 0
}

// TotalReachability sums every extension's counter; zero iff there is no
// outstanding work left for this toolchain.
func (tc *Toolchain) TotalReachability() int {
	total := 0
	for _, v := range tc.reach {
		total += v
	}
	return total
}

// IsToolActive reports whether name is still in the active set.
func (tc *Toolchain) IsToolActive(name string) bool {
	return tc.active.Has(name)
}

// Deactivate removes name from the active set: it has no possible work
// remaining this run.
func (tc *Toolchain) Deactivate(name string) {
	tc.active.Remove(name)
}

// GetToolsFor returns every active tool (excluding generatingTool) that
// accepts ext as a single input, or — when ext is "" (the null-input
// bucket) — every active tool whose InputFiles is the NONE sentinel.
func (tc *Toolchain) GetToolsFor(ext, generatingTool string) []*tool.Tool {
	var out []*tool.Tool
	for _, t := range tc.tools.Values() {
		if t.Name == generatingTool || !tc.active.Has(t.Name) {
			continue
		}
		if ext == "" {
			if t.IsNullInput() {
				out = append(out, t)
			}
			continue
		}
		if t.InputFiles.Has(ext) {
			out = append(out, t)
		}
	}
	return out
}

// GetSearchExtensions returns the union of every tool's non-null input
// extensions and group-input extensions — the set discovery scans for.
func (tc *Toolchain) GetSearchExtensions() *ordered.Set[string] {
	out := ordered.NewSet[string]()
	for _, t := range tc.tools.Values() {
		if !t.InputFiles.None && t.InputFiles.Extensions != nil {
			out.UnionInPlace(t.InputFiles.Extensions)
		}
		if t.InputGroups != nil {
			out.UnionInPlace(t.InputGroups)
		}
	}
	return out
}

// SetDefaultChecker sets the fallback checker used when no per-extension
// checker is registered.
func (tc *Toolchain) SetDefaultChecker(c Checker) {
	tc.def = c
}

// SetChecker registers a per-extension checker.
func (tc *Toolchain) SetChecker(ext string, c Checker) {
	tc.checkers[ext] = c
}

// GetChecker returns the checker registered for ext, or the default.
func (tc *Toolchain) GetChecker(ext string) Checker {
	if c, ok := tc.checkers[ext]; ok {
		return c
	}
	return tc.def
}

// SupportsCombination reports whether every composed tool admits
// arch/platform, i.e. none of them exclude this triple outright (flatten
// step 8, performed once the toolchain instance for a combination is
// known).
func (tc *Toolchain) SupportsCombination(arch, platform string) bool {
	for _, t := range tc.tools.Values() {
		if !t.SupportsArchitecture(arch) || !t.SupportsPlatform(platform) {
			return false
		}
	}
	return true
}
