// Package checker implements the default, mtime-based recompile checker
// (C8): per-file freshness computed over the header-dependency closure,
// memoized with single-writer/multi-reader cells so concurrent workers
// never recompute the same file's value twice.
package checker

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/csbuild/csbuild/internal/tool"
)

// DependencyFunc returns the file paths a path's recompile value transitively
// depends on (e.g. headers found by scanning include directives). Missing
// files should simply be omitted, not returned as an error.
type DependencyFunc func(path string) []string

// cell is a write-once, multi-reader memoization slot: the first caller to
// reach Compute runs fn and publishes the result; every other caller blocks
// until publication instead of recomputing.
type cell struct {
	once  sync.Once
	done  chan struct{}
	value int64
	err   error
}

func newCell() *cell {
	return &cell{done: make(chan struct{})}
}

func (c *cell) Compute(fn func() (int64, error)) (int64, error) {
	c.once.Do(func() {
		c.value, c.err = fn()
		close(c.done)
	})
	<-c.done
	return c.value, c.err
}

// Checker is the default freshness checker. A Checker is safe for concurrent
// use by multiple workers.
type Checker struct {
	mu   sync.Mutex
	memo map[string]*cell

	deps DependencyFunc

	// GenerateSolutionMode forces ShouldRecompile to always report true, per
	// §4.6 ("in generate-solution mode, should_recompile is forced true so
	// all tools run").
	GenerateSolutionMode bool
}

// New returns a Checker using deps to discover per-file dependencies. A nil
// deps defaults to ScanIncludes.
func New(deps DependencyFunc) *Checker {
	if deps == nil {
		deps = ScanIncludes
	}
	return &Checker{memo: make(map[string]*cell), deps: deps}
}

func (c *Checker) cellFor(path string) *cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.memo[path]; ok {
		return cl
	}
	cl := newCell()
	c.memo[path] = cl
	return cl
}

// Check returns path's recompile value: the newest modification time over
// path itself and its dependency closure, condensed (max) transitively, with
// a visited-set cutoff so cycles terminate.
func (c *Checker) Check(path string) (int64, error) {
	return c.check(path, make(map[string]bool))
}

func (c *Checker) check(path string, visited map[string]bool) (int64, error) {
	if visited[path] {
		return 0, nil
	}
	visited[path] = true
	return c.cellFor(path).Compute(func() (int64, error) {
		return c.computeValue(path, visited)
	})
}

func (c *Checker) computeValue(path string, visited map[string]bool) (int64, error) {
	own, err := mtime(path)
	if err != nil {
		return 0, err
	}
	value := own
	for _, dep := range c.deps(path) {
		dv, err := c.check(dep, visited)
		if err != nil {
			continue // missing dependency files are dropped, not fatal
		}
		value = condense(value, dv)
	}
	return value, nil
}

func condense(a, b int64) int64 {
	if b > a {
		return b
	}
	return a
}

func mtime(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixNano(), nil
}

// Baseline returns the minimum recompile value over previousOutputs (the
// prior run's result for this input set), or (0, false) if there is no
// baseline — either because previousOutputs is empty or because one of them
// is now missing, both of which must force a recompile.
func (c *Checker) Baseline(previousOutputs []string) (int64, bool) {
	if len(previousOutputs) == 0 {
		return 0, false
	}
	min := int64(math.MaxInt64)
	for _, p := range previousOutputs {
		mt, err := mtime(p)
		if err != nil {
			return 0, false
		}
		if mt < min {
			min = mt
		}
	}
	return min, true
}

// ShouldRecompileValue reports whether value is fresher than baseline. When
// hasBaseline is false (null baseline) it always returns true.
func (c *Checker) ShouldRecompileValue(value, baseline int64, hasBaseline bool) bool {
	if c.GenerateSolutionMode {
		return true
	}
	if !hasBaseline {
		return true
	}
	return value > baseline
}

// ShouldRecompile satisfies toolchain.Checker: it computes file's recompile
// value (condensed with every file in baselineInputs, so a group tool's
// freshness reflects every member of the group), computes the baseline over
// previousOutputs, and reports whether a rebuild is required.
func (c *Checker) ShouldRecompile(file *tool.InputFile, baselineInputs []*tool.InputFile, previousOutputs []string) bool {
	value, err := c.Check(file.Path)
	if err != nil {
		return true
	}
	for _, bi := range baselineInputs {
		v, err := c.Check(bi.Path)
		if err != nil {
			return true
		}
		value = condense(value, v)
	}
	baseline, hasBaseline := c.Baseline(previousOutputs)
	return c.ShouldRecompileValue(value, baseline, hasBaseline)
}

var includeRE = regexp.MustCompile(`^\s*#\s*include\s+"([^"]+)"`)

// ScanIncludes is the default DependencyFunc: it scans path line by line for
// quoted #include directives and resolves them relative to path's own
// directory, dropping any that do not exist on disk.
func ScanIncludes(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var deps []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := includeRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		candidate := filepath.Join(dir, m[1])
		if _, err := os.Stat(candidate); err == nil {
			deps = append(deps, candidate)
		}
	}
	return deps
}
