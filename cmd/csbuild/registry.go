package main

import (
	"context"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/orchestrator"
	"github.com/csbuild/csbuild/internal/plan"
	"github.com/csbuild/csbuild/internal/settings"
	"github.com/csbuild/csbuild/internal/tool"
	"github.com/csbuild/csbuild/internal/toolchain"
)

// copyAdapter is the engine's smallest possible demonstration tool: it
// copies a .src file to a .out file byte for byte. Concrete compiler/linker
// adapters are out of scope for this engine; this stands in for them so the
// binary has something real to route through the scheduler out of the box.
type copyAdapter struct{}

func (copyAdapter) Describe(input *tool.InputFile) string {
	return "copy " + input.Path
}

func (copyAdapter) Run(_ context.Context, bc tool.BuildContext, input *tool.InputFile) ([]string, error) {
	out := strings.TrimSuffix(input.Path, ".src") + ".out"
	src, err := os.Open(input.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

func hostToolchain() *toolchain.Toolchain {
	copier := tool.NewSingle(tool.Declaration{
		Name:        "copy",
		InputFiles:  tool.Exts(".src"),
		OutputFiles: ordered.NewSetOf(".out"),
	}, copyAdapter{})
	return toolchain.New(copier)
}

// buildDemoRegistry registers the one "root" project a fresh checkout
// builds out of the box: everything under the invocation directory with a
// .src extension, copied through the "host" toolchain. A real declaration
// script would register its own plans, tools, and toolchains here instead
// (the equivalent of the original build system's make.py).
func buildDemoRegistry(workingDir string) (*plan.Registry, map[string]func() *toolchain.Toolchain, orchestrator.DefaultResolver) {
	reg := plan.NewRegistry()

	root := plan.NewPlan("root", workingDir)
	root.AutoDiscoverSourceFiles = true
	root.ProjectType = plan.ProjectTypeApplication
	root.Store.Enter(settings.AxisToolchain, []string{"host"})
	root.Store.Leave()
	_ = reg.Register(root)

	factories := map[string]func() *toolchain.Toolchain{
		"host": hostToolchain,
	}

	resolver := orchestrator.DefaultResolver{
		Platform:            runtime.GOOS,
		DefaultToolchain:    func(string) string { return "host" },
		DefaultArchitecture: func(string) string { return runtime.GOARCH },
	}

	return reg, factories, resolver
}
