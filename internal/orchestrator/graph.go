package orchestrator

import (
	"fmt"
	"strings"

	"github.com/csbuild/csbuild/internal/plan"
)

// GraphFormat selects --dependency-graph's output shape.
type GraphFormat string

const (
	GraphFormatText GraphFormat = "text"
	GraphFormatDot  GraphFormat = "dot"
)

// RenderDependencyGraph renders the registry's plan dependency graph, per
// SPEC_FULL §C.2: a text tree (one line per plan, indented by dependency
// depth, in the DAG's insertion order) or a Graphviz "dot" digraph. This is
// an additive output format; it has no effect on flattening or scheduling.
func RenderDependencyGraph(reg *plan.Registry, format GraphFormat) (string, error) {
	order, err := reg.DependencyOrder()
	if err != nil {
		return "", err
	}

	switch format {
	case GraphFormatDot:
		return renderDot(reg, order)
	default:
		return renderText(reg, order)
	}
}

func renderText(reg *plan.Registry, order []string) (string, error) {
	var b strings.Builder
	depth := make(map[string]int, len(order))
	for _, name := range order {
		p, _ := reg.Get(name)
		d := 0
		for _, dep := range p.Dependencies {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[name] = d
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", d), name)
	}
	return b.String(), nil
}

func renderDot(reg *plan.Registry, order []string) (string, error) {
	var b strings.Builder
	b.WriteString("digraph csbuild {\n")
	for _, name := range order {
		p, _ := reg.Get(name)
		fmt.Fprintf(&b, "  %q;\n", name)
		for _, dep := range p.Dependencies {
			fmt.Fprintf(&b, "  %q -> %q;\n", name, dep)
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}
