// Package main implements the csbuild CLI: the cobra command tree that
// turns axis-selection, mode, and concurrency flags into an
// orchestrator.RunRequest. The core engine never sees a cobra type; it only
// ever consumes the parsed request built here.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/csbuild/csbuild/internal/config"
	"github.com/csbuild/csbuild/internal/logging"
	"github.com/csbuild/csbuild/internal/orchestrator"
)

var (
	targetNames       []string
	architectureNames []string
	toolchainNames    []string
	projectNames      []string

	allTargets       bool
	allToolchains    bool
	allArchitectures bool

	cleanFlag       bool
	rebuildFlag     bool
	generateSoln    string
	jobs            int
	clearCacheFlag  bool
	showCommands    bool
	stopOnErrorFlag bool
	dependencyGraph string

	verboseCount int
	quietCount   int
)

var rootCmd = &cobra.Command{
	Use:   "csbuild",
	Short: "Cross-platform, language-agnostic build driver",
	Long: `csbuild drives a declared set of projects across
{toolchain x architecture x target x platform} combinations, routing files
through composed tool pipelines and rebuilding only what changed.`,
	RunE: runBuild,
}

func init() {
	rootCmd.Flags().StringSliceVar(&targetNames, "target", nil, "target(s) to build (repeatable)")
	rootCmd.Flags().BoolVar(&allTargets, "all-targets", false, "ignore --target and build the default target (the demo registry lists no other targets)")
	rootCmd.Flags().StringSliceVar(&toolchainNames, "toolchain", nil, "toolchain(s) to build with (repeatable)")
	rootCmd.Flags().BoolVar(&allToolchains, "all-toolchains", false, "ignore --toolchain and build with the default toolchain (the demo registry lists no other toolchains)")
	rootCmd.Flags().StringSliceVar(&architectureNames, "architecture", nil, "architecture(s) to build for (repeatable)")
	rootCmd.Flags().BoolVar(&allArchitectures, "all-architectures", false, "ignore --architecture and build for the default architecture (the demo registry lists no other architectures)")
	rootCmd.Flags().StringSliceVar(&projectNames, "project", nil, "restrict the build to these project(s) and their dependencies")

	rootCmd.Flags().BoolVar(&cleanFlag, "clean", false, "remove previous run's artifacts before building")
	rootCmd.Flags().BoolVar(&rebuildFlag, "rebuild", false, "force every tool to run regardless of freshness")
	rootCmd.Flags().StringVar(&generateSoln, "generate-solution", "", "generate an IDE solution with this name instead of building")

	rootCmd.Flags().IntVar(&jobs, "jobs", 0, "worker pool size (default: CPU count)")
	rootCmd.Flags().BoolVar(&clearCacheFlag, "clear-cache", false, "wipe the persisted settings cache and force a rebuild")
	rootCmd.Flags().BoolVar(&showCommands, "show-commands", false, "set show_commands in the run configuration (tool commands are logged at debug level, -v, either way)")
	rootCmd.Flags().BoolVar(&stopOnErrorFlag, "stop-on-error", false, "abort the pool after the first tool failure")
	rootCmd.Flags().StringVar(&dependencyGraph, "dependency-graph", "", `render the project dependency graph ("text" or "dot") instead of building`)

	rootCmd.Flags().CountVarP(&verboseCount, "verbose", "v", "increase log verbosity")
	rootCmd.Flags().CountVarP(&quietCount, "quiet", "q", "decrease log verbosity (repeatable: -q, -qq)")
}

func verbosity() int {
	if verboseCount > 0 {
		return -1
	}
	return quietCount
}

func runBuild(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("csbuild: getwd: %w", err)
	}

	cfgPath := filepath.Join(cwd, ".csbuild", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}
	if showCommands {
		cfg.ShowCommands = true
	}
	if stopOnErrorFlag {
		cfg.StopOnError = true
	}
	v := verbosity()
	if v != 0 {
		cfg.Verbosity = v
	}

	if err := logging.Init(cfg.Verbosity); err != nil {
		return err
	}
	defer logging.Sync()

	if clearCacheFlag {
		if err := orchestrator.ClearCache(cwd); err != nil {
			return err
		}
	}

	reg, toolchainFactories, resolver := buildDemoRegistry(cwd)

	o := orchestrator.New(orchestrator.Options{
		Registry:           reg,
		ToolchainFactories: toolchainFactories,
		Platform:           resolver.Platform,
		DefaultResolver:    resolver,
		Root:               cwd,
		IntermediateRoot:   filepath.Join(cwd, "intermediate"),
		OutputRoot:         filepath.Join(cwd, "output"),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	exitSignal := 0
	go func() {
		sig := <-sigCh
		if n, ok := sig.(syscall.Signal); ok {
			exitSignal = int(n)
		}
		cancel()
	}()
	defer signal.Stop(sigCh)

	req := orchestrator.RunRequest{
		Targets:          expandAxis(targetNames, allTargets),
		Architectures:    expandAxis(architectureNames, allArchitectures),
		Toolchains:       expandAxis(toolchainNames, allToolchains),
		Projects:         projectNames,
		Clean:            cleanFlag,
		Rebuild:          rebuildFlag,
		GenerateSolution: generateSoln,
		Jobs:             cfg.Jobs,
		StopOnError:      cfg.StopOnError,
		DependencyGraph:  orchestrator.GraphFormat(dependencyGraph),
	}

	result, runErr := o.Run(ctx, req)

	if exitSignal != 0 {
		os.Exit(exitSignal)
	}

	if result != nil && result.DependencyGraph != "" {
		fmt.Print(result.DependencyGraph)
		return nil
	}

	if runErr != nil {
		if result != nil && result.FailureCount > 0 {
			os.Exit(result.FailureCount)
		}
		return runErr
	}
	return nil
}

// expandAxis returns nil when "all" is set, otherwise the explicitly
// requested names unchanged. The demo registry offers no list of known names
// for any axis, so "all" discards any explicit names and the axis falls back
// to its single default entry in Combinations.
func expandAxis(names []string, all bool) []string {
	if all {
		return nil
	}
	return names
}

func main() {
	if os.Getenv("CSBUILD_NO_AUTO_RUN") == "1" {
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
